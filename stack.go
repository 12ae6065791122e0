package rpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/jeremywhuff/rpapi/errs"
)

const stackKey = "rpapi.stack"

// Stack is the per-request state threaded through a route's chain. A new Stack is
// created by the first stage of every chain and is never shared between requests.
type Stack struct {
	ID        string
	C         *gin.Context
	Request   *http.Request
	StartedOn time.Time
	Route     *Route
	Resource  *Resource

	// PrimaryKey is the raw id of the item a detail route targets.
	PrimaryKey string

	// Query is filled by ParseQueryString.
	Query Query

	// Body is the decoded JSON request body, in public form.
	Body map[string]any
	// Document is Body converted to internal form by the body parsing hook.
	Document map[string]any

	// Data is the result produced by the route handler, in internal form.
	Data any
	// Total is the number of items matching a list query, before pagination.
	Total int64
	// StatusCode is the status the response will be sent with.
	StatusCode int
	// Package is the formatted response body.
	Package any

	mu     sync.Mutex
	values map[string]any
	next   NextFunc
}

func newStack(c *gin.Context, r *Route) *Stack {
	s := &Stack{
		ID:         uuid.NewString(),
		C:          c,
		Request:    c.Request,
		StartedOn:  time.Now(),
		Route:      r,
		Resource:   r.resource,
		PrimaryKey: c.Param("id"),
		StatusCode: http.StatusOK,
	}
	c.Set(stackKey, s)
	return s
}

// StackOf returns the Stack attached to c, or nil when the chain has not created one.
func StackOf(c *gin.Context) *Stack {
	v, ok := c.Get(stackKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Stack)
	return s
}

// Next runs the next stage of the chain.
func (s *Stack) Next() {
	if s.next != nil {
		s.next(nil)
	}
}

// Fail ends the chain with err.
func (s *Stack) Fail(err error) {
	if err == nil {
		err = errs.InternalServerError("chain failed without an error")
	}
	if s.next != nil {
		s.next(err)
	}
}

// Context returns the request context.
func (s *Stack) Context() context.Context {
	return s.C.Request.Context()
}

// Elapsed returns the time since the stack was created.
func (s *Stack) Elapsed() time.Duration {
	return time.Since(s.StartedOn)
}

// Param looks name up in the path parameters, then in the query string.
func (s *Stack) Param(name string) string {
	if v := s.C.Param(name); v != "" {
		return v
	}
	return s.C.Query(name)
}

// Set stores a value for later stages. It is safe to call from the tasks of
// InParallel.
func (s *Stack) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

func (s *Stack) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// ReadBody decodes the JSON request body into s.Body. The body is cached on the gin
// context so later stages can read it again. An empty body decodes to an empty map.
func (s *Stack) ReadBody() (map[string]any, error) {
	if s.Body != nil {
		return s.Body, nil
	}
	body := map[string]any{}
	if s.Request.Body != nil && s.Request.Body != http.NoBody {
		if err := s.C.ShouldBindBodyWith(&body, binding.JSON); err != nil && !errors.Is(err, io.EOF) {
			return nil, errs.BadRequest("Invalid request body: %s", err.Error())
		}
	}
	if body == nil {
		body = map[string]any{}
	}
	s.Body = body
	return body, nil
}
