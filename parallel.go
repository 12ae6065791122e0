package rpapi

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work that reports through its error instead of the stack's
// continuation. Tasks run by InParallel share the stack, so they should only write
// to it with Set.
type Task func(ctx context.Context, s *Stack) error

// Handler runs t as one stage.
func (t Task) Handler(name string) Handler {
	return Func(func(s *Stack) {
		if err := t(s.Context(), s); err != nil {
			s.Fail(err)
			return
		}
		s.Next()
	}).Named(name)
}

// InParallel runs tasks concurrently and continues once every one has succeeded.
// The first failure cancels the context of the others and fails the stage.
func InParallel(tasks ...Task) Handler {
	return Func(func(s *Stack) {
		g, ctx := errgroup.WithContext(s.Context())
		for _, t := range tasks {
			g.Go(func() error { return t(ctx, s) })
		}
		if err := g.Wait(); err != nil {
			s.Fail(err)
			return
		}
		s.Next()
	}).Named("InParallel(" + strconv.Itoa(len(tasks)) + ")")
}
