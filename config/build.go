package config

import (
	"fmt"
	"strings"

	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/auth"
	"github.com/jeremywhuff/rpapi/fields"
	"github.com/jeremywhuff/rpapi/rpmongo"
)

// Collections returns the collection stored under name, usually
// (*mongo.Database).Collection.
type Collections func(name string) rpmongo.Collection

// Build declares the API and the resources of c. Field kinds are looked up in reg,
// which defaults to fields.NewRegistry. opts come after the ones derived from c.
func (c *Config) Build(colls Collections, reg *fields.Registry, opts ...rpapi.Option) (*rpapi.API, error) {
	if reg == nil {
		reg = fields.NewRegistry()
	}

	var base []rpapi.Option
	if c.Auth.Secret != "" {
		base = append(base, rpapi.WithAuthentication(auth.Bearer([]byte(c.Auth.Secret))))
	}
	if c.Auth.Rule != "" {
		rule, err := auth.Rule(c.Auth.Rule)
		if err != nil {
			return nil, fmt.Errorf("auth rule: %w", err)
		}
		base = append(base, rpapi.WithAuthorization(rule))
	}

	api, err := rpapi.New(c.API, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	for i, r := range c.Resources {
		if err := r.build(api, colls, reg); err != nil {
			return nil, fmt.Errorf("resources[%d]: %w", i, err)
		}
	}
	return api, nil
}

func (r ResourceConfig) collection() string {
	switch {
	case r.Collection != "":
		return r.Collection
	case r.Name != "":
		return r.Name
	}
	return strings.Trim(r.Path, "/")
}

func (r ResourceConfig) build(api *rpapi.API, colls Collections, reg *fields.Registry) error {
	fs := make([]fields.Field, 0, len(r.Fields))
	for j, fc := range r.Fields {
		f, err := reg.New(fc.Kind, fc.Options)
		if err != nil {
			return fmt.Errorf("fields[%d]: %w", j, err)
		}
		fs = append(fs, f)
	}

	cfg := rpapi.ResourceConfig{
		Name:   r.Name,
		Path:   r.Path,
		Fields: fs,
		Queryable: rpapi.Queryable{
			Filterable:   r.Filterable,
			Sortable:     r.Sortable,
			Selectable:   r.Selectable,
			DefaultLimit: r.DefaultLimit,
			MaxLimit:     r.MaxLimit,
		},
	}
	if r.Authorization != "" {
		rule, err := auth.Rule(r.Authorization)
		if err != nil {
			return fmt.Errorf("authorization: %w", err)
		}
		cfg.Authable.Authorization = rule
	}

	var opts []rpmongo.Option
	if r.UnfilteredWrites {
		opts = append(opts, rpmongo.WithUnfilteredWrites())
	}
	_, err := rpmongo.NewResource(api, colls(r.collection()), cfg, opts...)
	return err
}
