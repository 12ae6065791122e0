package rpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/jeremywhuff/rpapi/errs"
)

// NextFunc is the continuation handed to every stage. Calling it with nil runs the next
// stage; calling it with an error ends the chain with that error.
type NextFunc func(err error)

// RawFunc is a stage written against the gin context and the continuation.
type RawFunc func(c *gin.Context, next NextFunc)

// StackFunc is a stage written against the request Stack. It advances with s.Next()
// or ends the chain with s.Fail(err).
type StackFunc func(s *Stack)

// Handler is one entry of a route's chain. Build it with Raw or Func; the zero Handler
// means "no hook" and is skipped when the chain is built.
type Handler struct {
	name  string
	raw   RawFunc
	stack StackFunc
}

// Raw wraps a RawFunc. It is used as-is in the chain.
func Raw(f RawFunc) Handler {
	return Handler{raw: f}
}

// Func wraps a StackFunc. The chain stores the continuation on the Stack before
// calling f.
func Func(f StackFunc) Handler {
	return Handler{stack: f}
}

// Named returns a copy of h that logs under name.
func (h Handler) Named(name string) Handler {
	h.name = name
	return h
}

func (h Handler) Name() string {
	return h.name
}

func (h Handler) IsZero() bool {
	return h.raw == nil && h.stack == nil
}

// normalize brings both variants to the raw calling convention.
func (h Handler) normalize() RawFunc {
	if h.raw != nil {
		return h.raw
	}
	f := h.stack
	return func(c *gin.Context, next NextFunc) {
		s := StackOf(c)
		if s == nil {
			next(errs.InternalServerError("stage %q ran before the stack was created", h.name))
			return
		}
		// Hand the slot back to the stage that ran this one once f returns.
		prev := s.next
		s.next = next
		f(s)
		s.next = prev
	}
}
