package rpapi

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jeremywhuff/rpapi/errs"
	"github.com/jeremywhuff/rpapi/fields"
)

// ResourceHooks are the resource-level stages of every route's chain. Nil hooks are
// skipped; NewResource fills ParseQueryBody, FormatResponsePackage and SendResponse
// with the defaults when they are not set.
type ResourceHooks struct {
	ParseQueryFilter      Handler
	ParseQuerySelect      Handler
	ParseQuerySort        Handler
	ParseQueryBody        Handler
	FormatResponsePackage Handler
	SendResponse          Handler
}

// ResourceConfig declares a resource. Path is required.
type ResourceConfig struct {
	Name       string
	Path       string
	Fields     []fields.Field
	Controller Controller

	Authable
	Hooks ResourceHooks

	// Queryable applies to the default routes.
	Queryable Queryable

	// DisableDefaultRoutes skips the CRUD routes; only Routes are mounted.
	DisableDefaultRoutes bool
	Routes               []RouteConfig
}

// Resource is a collection of documents exposed under one path.
type Resource struct {
	api        *API
	name       string
	path       string
	fields     []fields.Field
	byPublic   map[string]fields.Field
	byPath     map[string]fields.Field
	controller Controller
	authable   Authable
	hooks      ResourceHooks
	routes     []*Route
}

// NewResource declares a resource on the API and builds its routes.
func (a *API) NewResource(cfg ResourceConfig) (*Resource, error) {
	if cfg.Path == "" {
		return nil, errs.Required("path")
	}

	r := &Resource{
		api:        a,
		name:       cfg.Name,
		path:       cfg.Path,
		fields:     slices.Clone(cfg.Fields),
		byPublic:   make(map[string]fields.Field, len(cfg.Fields)),
		byPath:     make(map[string]fields.Field, len(cfg.Fields)),
		controller: cfg.Controller,
		authable:   cfg.Authable,
		hooks:      cfg.Hooks,
	}
	if r.name == "" {
		r.name = strings.Trim(cfg.Path, "/")
	}
	if r.controller == nil {
		r.controller = UnimplementedController{}
	}

	for _, f := range r.fields {
		if _, dup := r.byPublic[f.PublicPath()]; dup {
			return nil, fmt.Errorf("resource %s: duplicate field %q", r.name, f.PublicPath())
		}
		if _, dup := r.byPath[f.Path()]; dup {
			return nil, fmt.Errorf("resource %s: duplicate field path %q", r.name, f.Path())
		}
		r.byPublic[f.PublicPath()] = f
		r.byPath[f.Path()] = f
	}

	if r.hooks.ParseQueryBody.IsZero() {
		r.hooks.ParseQueryBody = Func(ParseBody)
	}
	if r.hooks.FormatResponsePackage.IsZero() {
		r.hooks.FormatResponsePackage = Func(FormatResponse)
	}
	if r.hooks.SendResponse.IsZero() {
		r.hooks.SendResponse = Func(SendJSON)
	}

	var cfgs []RouteConfig
	if !cfg.DisableDefaultRoutes {
		cfgs = append(cfgs, defaultRoutes(r, cfg.Queryable)...)
	}
	cfgs = append(cfgs, cfg.Routes...)

	for _, rc := range cfgs {
		rc.Resource = r
		route, err := NewRoute(rc)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", r.name, err)
		}
		r.routes = append(r.routes, route)
	}
	if err := a.addRoutes(r.routes...); err != nil {
		return nil, fmt.Errorf("resource %s: %w", r.name, err)
	}

	a.resources = append(a.resources, r)
	return r, nil
}

// NewRoute builds a route on r and registers it with r's API.
func (r *Resource) NewRoute(cfg RouteConfig) (*Route, error) {
	cfg.Resource = r
	route, err := NewRoute(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.api.addRoutes(route); err != nil {
		return nil, err
	}
	r.routes = append(r.routes, route)
	return route, nil
}

func (r *Resource) API() *API              { return r.api }
func (r *Resource) Name() string           { return r.name }
func (r *Resource) Path() string           { return r.path }
func (r *Resource) Controller() Controller { return r.controller }
func (r *Resource) Fields() []fields.Field { return slices.Clone(r.fields) }
func (r *Resource) Routes() []*Route       { return slices.Clone(r.routes) }

// Field looks a field up by its public path.
func (r *Resource) Field(publicPath string) (fields.Field, bool) {
	f, ok := r.byPublic[publicPath]
	return f, ok
}

// FieldByPath looks a field up by its storage path.
func (r *Resource) FieldByPath(path string) (fields.Field, bool) {
	f, ok := r.byPath[path]
	return f, ok
}

// fieldSet resolves public paths to fields. A nil list means every field.
func (r *Resource) fieldSet(names []string) (map[string]fields.Field, error) {
	if names == nil {
		return maps.Clone(r.byPublic), nil
	}
	out := make(map[string]fields.Field, len(names))
	for _, name := range names {
		f, ok := r.byPublic[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		out[name] = f
	}
	return out, nil
}

// ToPublic converts a stored document to its public form. Only the selected fields are
// included, or every field when selected is empty. Fields missing from doc are left out.
func (r *Resource) ToPublic(doc map[string]any, selected []fields.Field) map[string]any {
	fs := selected
	if len(fs) == 0 {
		fs = r.fields
	}
	out := make(map[string]any, len(fs))
	for _, f := range fs {
		v, ok := lookup(doc, f.Path())
		if !ok {
			continue
		}
		out[f.PublicPath()] = f.ToPublic(v)
	}
	return out
}

// ToInternal converts and validates a public request body. Unknown keys are rejected.
// When partial is false, missing fields take their defaults and required fields must
// be present; when it is true, only the fields in body are checked.
func (r *Resource) ToInternal(body map[string]any, partial bool) (map[string]any, error) {
	for _, k := range slices.Sorted(maps.Keys(body)) {
		if _, ok := r.byPublic[k]; !ok {
			return nil, errs.BadRequest("%s", fields.ForbiddenFieldMessage(k))
		}
	}

	doc := make(map[string]any, len(body))
	for _, f := range r.fields {
		raw, present := body[f.PublicPath()]
		if !present {
			if partial {
				continue
			}
			if def := f.DefaultValue(); def != nil {
				raw, present = def, true
			}
		}

		var v any
		if present {
			v = f.ToInternal(raw)
		}
		if !f.Validate(v) {
			return nil, errs.BadRequest("%s", invalidMessage(f, raw, v))
		}
		if present {
			assign(doc, f.Path(), v)
		}
	}
	return doc, nil
}

func invalidMessage(f fields.Field, raw, v any) string {
	if v == nil {
		return fields.MissingParameterMessage(f.PublicPath())
	}
	if e, ok := f.(interface{ Enum() []string }); ok && len(e.Enum()) > 0 {
		if s, ok := v.(string); ok && !slices.Contains(e.Enum(), s) {
			return fields.NotInEnumMessage(f.PublicPath(), e.Enum(), s)
		}
	}
	return fields.BadTypeMessage(f.PublicPath(), f.Kind(), fields.TypeName(raw))
}

// lookup reads a dotted path from nested maps.
func lookup(doc map[string]any, path string) (any, bool) {
	cur := doc
	for {
		key, rest, nested := strings.Cut(path, ".")
		v, ok := cur[key]
		if !ok || !nested {
			return v, ok
		}
		if cur, ok = v.(map[string]any); !ok {
			return nil, false
		}
		path = rest
	}
}

// assign writes v at a dotted path, creating intermediate maps.
func assign(doc map[string]any, path string, v any) {
	cur := doc
	for {
		key, rest, nested := strings.Cut(path, ".")
		if !nested {
			cur[key] = v
			return
		}
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur, path = next, rest
	}
}
