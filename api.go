package rpapi

// rpapi builds REST routes over a document store as request pipelines: every route is
// a chain of stages sharing one Stack.

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeremywhuff/rpapi/errs"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jeremywhuff/rpapi"

type H map[string]any

// ErrorHandler answers a request whose chain ended with e.
type ErrorHandler func(c *gin.Context, e *errs.Error)

// API is the root of a set of resources. Every route path starts with the API name.
type API struct {
	name string

	authable       Authable
	logger         Logger
	errorHandler   ErrorHandler
	validateSchema SchemaValidator
	tracer         trace.Tracer
	metrics        *metrics

	resources []*Resource
	routes    []*Route
	routeKeys map[string]*Route
}

type Option func(*API)

// WithLogger sets the stage logger. A nil logger disables stage logs.
func WithLogger(l Logger) Option {
	return func(a *API) {
		a.logger = l
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(a *API) {
		a.errorHandler = h
	}
}

func WithSchemaValidator(v SchemaValidator) Option {
	return func(a *API) {
		a.validateSchema = v
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(a *API) {
		a.tracer = t
	}
}

// WithMetrics registers the API's request metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(a *API) {
		a.metrics = newMetrics(reg, a.name)
	}
}

// WithAuthentication sets the API-wide authentication hook, run before the resource
// and route ones.
func WithAuthentication(h Handler) Option {
	return func(a *API) {
		a.authable.Authentication = h
	}
}

// WithAuthorization sets the API-wide authorization hook, run after every
// authentication hook and before the resource and route authorization.
func WithAuthorization(h Handler) Option {
	return func(a *API) {
		a.authable.Authorization = h
	}
}

// New creates an API named name.
func New(name string, opts ...Option) (*API, error) {
	if name == "" {
		return nil, errs.Required("name")
	}
	a := &API{
		name:           name,
		logger:         DefaultLogger{},
		errorHandler:   DefaultErrorHandler,
		validateSchema: ValidateSchema,
		tracer:         otel.Tracer(tracerName),
		routeKeys:      make(map[string]*Route),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.errorHandler == nil {
		a.errorHandler = DefaultErrorHandler
	}
	if a.validateSchema == nil {
		a.validateSchema = ValidateSchema
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(tracerName)
	}
	return a, nil
}

func (a *API) Name() string { return a.name }

func (a *API) Resources() []*Resource {
	return slices.Clone(a.resources)
}

// Resource looks a resource up by name.
func (a *API) Resource(name string) (*Resource, bool) {
	for _, r := range a.resources {
		if r.name == name {
			return r, true
		}
	}
	return nil, false
}

// Routes lists every route in declaration order.
func (a *API) Routes() []*Route {
	return slices.Clone(a.routes)
}

// addRoutes registers routes, failing without registering any of them when one
// repeats a method and path already taken.
func (a *API) addRoutes(routes ...*Route) error {
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		key := r.method + " " + r.path
		if prev, ok := a.routeKeys[key]; ok || seen[key] {
			name := r.name
			if prev != nil {
				name = prev.name
			}
			return fmt.Errorf("route %s %s is already declared by %s", r.method, r.path, name)
		}
		seen[key] = true
	}
	for _, r := range routes {
		a.routeKeys[r.method+" "+r.path] = r
		a.routes = append(a.routes, r)
	}
	return nil
}

// Mount adds every route to router.
func (a *API) Mount(router gin.IRoutes) {
	for _, r := range a.routes {
		router.Handle(strings.ToUpper(r.method), r.path, r.HandlerFunc())
	}
}

// DefaultErrorHandler writes e as JSON. Server errors hide their cause from the client.
func DefaultErrorHandler(c *gin.Context, e *errs.Error) {
	_ = c.Error(e)
	if c.Writer.Written() {
		c.Abort()
		return
	}
	msg := e.Message
	if e.StatusCode >= http.StatusInternalServerError && e.Err != nil {
		msg = http.StatusText(e.StatusCode)
	}
	c.AbortWithStatusJSON(e.StatusCode, H{
		"error":      e.Name,
		"message":    msg,
		"statusCode": e.StatusCode,
	})
}
