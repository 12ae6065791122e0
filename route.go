package rpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeremywhuff/rpapi/errs"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrHandlerConflict is returned by NewRoute when both Handler and Handlers are set.
var ErrHandlerConflict = errors.New("cannot provide both handler and handlers")

var methods = []string{"get", "post", "put", "patch", "delete", "head", "options"}

// IsWritable reports whether requests with method carry a body to store.
func IsWritable(method string) bool {
	switch strings.ToLower(method) {
	case "put", "patch", "post":
		return true
	}
	return false
}

// Authable holds the authentication and authorization hooks of one tier (API,
// resource or route).
type Authable struct {
	Authentication Handler
	Authorization  Handler
}

// RouteConfig declares a route. Path and Resource are required.
type RouteConfig struct {
	Name     string // Used in logs and as the OpenAPI operation id
	Method   string // Defaults to GET
	Path     string // Appended to the resource path; "/" for the resource root
	Resource *Resource
	IsDetail bool // Adds an :id segment between the resource path and Path

	// Schema is a JSON schema the request body must satisfy: a string, []byte, a
	// value marshalling to a schema, or a compiled *jsonschema.Schema.
	Schema any

	Handler  Handler
	Handlers []Handler

	Authable
	Queryable

	SetupStack Handler
	Validation Handler
}

// Route is one method and path with its chain. It does not change once built.
type Route struct {
	name     string
	method   string
	path     string
	resource *Resource
	isDetail bool
	schema   *jsonschema.Schema

	authable   Authable
	queryable  queryable
	setupStack Handler
	validation Handler
	handlers   []Handler

	chain *Chain
}

// NewRoute validates cfg, resolves the route's path and builds its chain.
func NewRoute(cfg RouteConfig) (*Route, error) {
	if cfg.Path == "" {
		return nil, errs.Required("path")
	}
	if cfg.Resource == nil {
		return nil, errs.Required("resource")
	}
	if cfg.Resource.api == nil {
		return nil, fmt.Errorf("resource %q is not attached to an API", cfg.Resource.name)
	}

	method := strings.ToLower(cfg.Method)
	if method == "" {
		method = "get"
	}
	if !slices.Contains(methods, method) {
		return nil, fmt.Errorf("unsupported method %q", cfg.Method)
	}

	handlers := cfg.Handlers
	if handlers != nil {
		if !cfg.Handler.IsZero() {
			return nil, ErrHandlerConflict
		}
		handlers = slices.Clone(handlers)
	} else if !cfg.Handler.IsZero() {
		handlers = []Handler{cfg.Handler}
	}

	r := &Route{
		name:       cfg.Name,
		method:     method,
		resource:   cfg.Resource,
		isDetail:   cfg.IsDetail,
		authable:   cfg.Authable,
		setupStack: cfg.SetupStack,
		validation: cfg.Validation,
		handlers:   handlers,
	}
	r.path = r.buildPath(cfg.Path)
	if r.name == "" {
		r.name = method + " " + r.path
	}

	var err error
	if r.queryable, err = cfg.Queryable.compute(cfg.Resource); err != nil {
		return nil, fmt.Errorf("route %s: %w", r.name, err)
	}
	if r.schema, err = compileSchema(cfg.Schema); err != nil {
		return nil, fmt.Errorf("route %s: schema: %w", r.name, err)
	}

	r.chain = r.buildHandlers()
	return r, nil
}

// MustRoute is like NewRoute but panics on error.
func MustRoute(cfg RouteConfig) *Route {
	r, err := NewRoute(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Route) Name() string               { return r.name }
func (r *Route) Method() string             { return r.method }
func (r *Route) Path() string               { return r.path }
func (r *Route) Resource() *Resource        { return r.resource }
func (r *Route) IsDetail() bool             { return r.isDetail }
func (r *Route) IsWritable() bool           { return IsWritable(r.method) }
func (r *Route) Schema() *jsonschema.Schema { return r.schema }

// Stages lists the names of the chain's stages in execution order.
func (r *Route) Stages() []string {
	return r.chain.Names()
}

// Queryable returns the public paths a client may filter, sort and select on.
func (r *Route) Queryable() Queryable {
	return Queryable{
		Filterable:   sortedKeys(r.queryable.filterable),
		Sortable:     sortedKeys(r.queryable.sortable),
		Selectable:   sortedKeys(r.queryable.selectable),
		DefaultLimit: r.queryable.defaultLimit,
		MaxLimit:     r.queryable.maxLimit,
	}
}

// buildPath joins the API name, resource path, the :id placeholder of detail routes
// and p. The result has no trailing slash.
func (r *Route) buildPath(p string) string {
	id := ""
	if r.isDetail {
		id = ":id"
	}
	return strings.TrimSuffix(path.Join("/", r.resource.api.name, r.resource.path, id, p), "/")
}

// buildHandlers assembles the chain: stack creation, authentication and authorization
// from the API, resource and route, query parsing, body parsing for writable routes,
// schema and route validation, the route handlers, then response formatting and
// sending.
func (r *Route) buildHandlers() *Chain {
	res := r.resource
	api := res.api

	hs := []Handler{
		Raw(r.createStack).Named("createStack"),

		hook(api.authable.Authentication, "api.authentication"),
		hook(res.authable.Authentication, "resource.authentication"),
		hook(r.authable.Authentication, "route.authentication"),

		hook(api.authable.Authorization, "api.authorization"),
		hook(res.authable.Authorization, "resource.authorization"),
		hook(r.authable.Authorization, "route.authorization"),

		hook(r.setupStack, "route.setupStack"),
		Func(parseQueryString).Named("parseQueryString"),

		hook(res.hooks.ParseQueryFilter, "resource.parseQueryFilter"),
		hook(res.hooks.ParseQuerySelect, "resource.parseQuerySelect"),
		hook(res.hooks.ParseQuerySort, "resource.parseQuerySort"),
	}
	if r.IsWritable() {
		hs = append(hs, hook(res.hooks.ParseQueryBody, "resource.parseQueryBody"))
	}
	if r.schema != nil {
		hs = append(hs, Func(r.validateSchema).Named("validateSchema"))
	}
	hs = append(hs, hook(r.validation, "route.validation"))

	for i, h := range r.handlers {
		hs = append(hs, hook(h, fmt.Sprintf("%s[%d]", r.name, i)))
	}

	hs = append(hs,
		hook(res.hooks.FormatResponsePackage, "resource.formatResponsePackage"),
		hook(res.hooks.SendResponse, "resource.sendResponse"),
	)
	return stages(hs...)
}

func (r *Route) createStack(c *gin.Context, next NextFunc) {
	newStack(c, r)
	next(nil)
}

func parseQueryString(s *Stack) {
	if err := s.ParseQueryString(); err != nil {
		s.Fail(err)
		return
	}
	s.Next()
}

func (r *Route) validateSchema(s *Stack) {
	body, err := s.ReadBody()
	if err != nil {
		s.Fail(err)
		return
	}
	if err := r.resource.api.validateSchema(body, r.schema); err != nil {
		s.Fail(errs.ErrBadRequest.Wrap(err))
		return
	}
	s.Next()
}

// SchemaValidator checks body against schema.
type SchemaValidator func(body any, schema *jsonschema.Schema) error

// ValidateSchema is the default SchemaValidator.
func ValidateSchema(body any, schema *jsonschema.Schema) error {
	return schema.Validate(body)
}

func compileSchema(v any) (*jsonschema.Schema, error) {
	const url = "schema.json"
	switch s := v.(type) {
	case nil:
		return nil, nil
	case *jsonschema.Schema:
		return s, nil
	case string:
		return jsonschema.CompileString(url, s)
	case []byte:
		return jsonschema.CompileString(url, string(s))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(url, string(b))
}

// HandlerFunc returns the gin handler serving this route.
func (r *Route) HandlerFunc() gin.HandlerFunc {
	return r.Serve
}

// Serve runs the chain for one request. A chain that ends without writing a response
// is answered with NotFound; a chain that ends with an error is answered by the API's
// error handler.
func (r *Route) Serve(c *gin.Context) {
	api := r.resource.api
	t := time.Now()

	ctx, span := api.tracer.Start(c.Request.Context(), r.name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", strings.ToUpper(r.method)),
			attribute.String("http.route", r.path),
			attribute.String("rpapi.resource", r.resource.name),
		))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var failure *errs.Error
	execute(r.chain, c, api.logger, func(err error) {
		if err == nil {
			if c.Writer.Written() {
				return
			}
			err = errs.NotFound("Cannot %s %s", strings.ToUpper(r.method), c.Request.URL.Path)
		}
		failure = errs.From(err)
		if api.logger != nil {
			api.logger.LogStageError(failure)
		}
		api.errorHandler(c, failure)
	})

	status := c.Writer.Status()
	span.SetAttributes(attribute.Int("http.status_code", status))
	if s := StackOf(c); s != nil {
		span.SetAttributes(attribute.String("rpapi.request_id", s.ID))
	}
	if failure != nil {
		span.RecordError(failure)
		if failure.StatusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, failure.Error())
		}
	}
	if api.metrics != nil {
		api.metrics.observe(r, status, time.Since(t), failure)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
