package fields

import (
	"fmt"
	"sort"
)

// Constructor builds a field of one kind.
type Constructor func(Options) (Field, error)

// Registry maps kind names to constructors. It is filled at startup and read
// afterwards; it is not safe for concurrent registration.
type Registry struct {
	kinds map[string]Constructor
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]Constructor)}
	r.Register(KindString, func(o Options) (Field, error) { return NewString(o) })
	r.Register(KindInteger, func(o Options) (Field, error) { return NewInteger(o) })
	r.Register(KindFloat, func(o Options) (Field, error) { return NewFloat(o) })
	r.Register(KindBoolean, func(o Options) (Field, error) { return NewBoolean(o) })
	r.Register(KindDate, func(o Options) (Field, error) { return NewDate(o) })
	r.Register(KindObjectID, func(o Options) (Field, error) { return NewObjectID(o) })
	return r
}

// Register adds or replaces the constructor for kind.
func (r *Registry) Register(kind string, c Constructor) {
	r.kinds[kind] = c
}

// New builds a field of the named kind.
func (r *Registry) New(kind string, opts Options) (Field, error) {
	c, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown field kind %q", kind)
	}
	return c(opts)
}

// Kinds returns the registered kind names in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Must panics if err is non-nil. It is meant for field declarations at startup.
func Must[F Field](f F, err error) F {
	if err != nil {
		panic(err)
	}
	return f
}
