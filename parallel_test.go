package rpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeremywhuff/rpapi/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parallelAPI(t *testing.T, handlers ...Handler) *API {
	t.Helper()
	api, err := New("api", WithLogger(nil))
	require.NoError(t, err)
	_, err = api.NewResource(ResourceConfig{
		Path:                 "reports",
		DisableDefaultRoutes: true,
		Routes:               []RouteConfig{{Path: "/", Handlers: handlers}},
	})
	require.NoError(t, err)
	return api
}

func store(key string, value any) Task {
	return func(ctx context.Context, s *Stack) error {
		s.Set(key, value)
		return nil
	}
}

func TestInParallel(t *testing.T) {
	collect := Func(func(s *Stack) {
		a, _ := s.Get("a")
		b, _ := s.Get("b")
		s.Data = H{"a": a, "b": b}
		s.Next()
	})
	api := parallelAPI(t, InParallel(store("a", 1), store("b", "two")), collect)

	w := serve(api, http.MethodGet, "/api/reports", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"a": float64(1), "b": "two"}, decode(t, w))
}

func TestInParallelCancelsOnFailure(t *testing.T) {
	var cancelled atomic.Bool
	slow := func(ctx context.Context, s *Stack) error {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}
	fail := func(ctx context.Context, s *Stack) error {
		return errs.Conflict("Out of stock.")
	}
	reached := false
	after := Func(func(s *Stack) { reached = true; s.Next() })

	w := serve(parallelAPI(t, InParallel(slow, fail), after), http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Out of stock.", decode(t, w)["message"])
	assert.True(t, cancelled.Load())
	assert.False(t, reached)
}

func TestTaskHandler(t *testing.T) {
	h := Task(func(ctx context.Context, s *Stack) error { return errs.BadRequest("nope") }).Handler("check")
	assert.Equal(t, "check", h.Name())

	w := serve(parallelAPI(t, h), http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
