// Package rpmongo serves rpapi resources from MongoDB collections.
package rpmongo

import (
	"slices"

	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/fields"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stack keys under which Hooks store the translated query.
const (
	FilterKey     = "rpmongo.filter"
	ProjectionKey = "rpmongo.projection"
	SortKey       = "rpmongo.sort"
)

var operators = map[string]string{
	fields.OpNe:     "$ne",
	fields.OpGt:     "$gt",
	fields.OpGte:    "$gte",
	fields.OpLt:     "$lt",
	fields.OpLte:    "$lte",
	fields.OpIn:     "$in",
	fields.OpNin:    "$nin",
	fields.OpRegex:  "$regex",
	fields.OpExists: "$exists",
}

// Filter translates query conditions to a MongoDB filter. Conditions on the same
// path are merged into one operator document; a single equality stays a plain value.
// When a path repeats an operator, its conditions go into a $and so that every one
// of them must hold.
func Filter(conds []rpapi.Condition) bson.D {
	var (
		order  []string
		byPath = make(map[string][]bson.D)
	)
	for _, c := range conds {
		path := c.Field.Path()
		if _, ok := byPath[path]; !ok {
			order = append(order, path)
		}
		op := "$eq"
		if c.Operator != "" {
			op = operators[c.Operator]
		}
		v := c.Value
		if c.Operator == fields.OpRegex {
			v = primitive.Regex{Pattern: v.(string)}
		}
		byPath[path] = add(byPath[path], op, v)
	}

	filter := bson.D{}
	var and bson.A
	for _, path := range order {
		clauses := byPath[path]
		if len(clauses) == 1 {
			filter = append(filter, condition(path, clauses[0]))
			continue
		}
		for _, ops := range clauses {
			and = append(and, bson.D{condition(path, ops)})
		}
	}
	if len(and) > 0 {
		filter = append(filter, bson.E{Key: "$and", Value: and})
	}
	return filter
}

// add puts key into the first clause that does not have it yet, or opens a new one.
func add(clauses []bson.D, key string, v any) []bson.D {
	for i, ops := range clauses {
		if !slices.ContainsFunc(ops, func(e bson.E) bool { return e.Key == key }) {
			clauses[i] = append(ops, bson.E{Key: key, Value: v})
			return clauses
		}
	}
	return append(clauses, bson.D{{Key: key, Value: v}})
}

func condition(path string, ops bson.D) bson.E {
	if len(ops) == 1 && ops[0].Key == "$eq" {
		return bson.E{Key: path, Value: ops[0].Value}
	}
	return bson.E{Key: path, Value: ops}
}

// Projection includes the storage paths of the selected fields. It is nil when no
// field is selected, which returns whole documents.
func Projection(selected []fields.Field) bson.D {
	if len(selected) == 0 {
		return nil
	}
	p := make(bson.D, 0, len(selected))
	for _, f := range selected {
		p = append(p, bson.E{Key: f.Path(), Value: 1})
	}
	return p
}

// Sort translates sort keys to a MongoDB sort document.
func Sort(keys []rpapi.SortKey) bson.D {
	if len(keys) == 0 {
		return nil
	}
	s := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if k.Descending {
			dir = -1
		}
		s = append(s, bson.E{Key: k.Field.Path(), Value: dir})
	}
	return s
}

// Hooks returns resource hooks that translate the parsed query once per request and
// store the result on the stack for the controller.
func Hooks() rpapi.ResourceHooks {
	return rpapi.ResourceHooks{
		ParseQueryFilter: rpapi.Func(func(s *rpapi.Stack) {
			s.Set(FilterKey, Filter(s.Query.Filter))
			s.Next()
		}).Named(rpapi.StageName("mongo.filter")),

		ParseQuerySelect: rpapi.Func(func(s *rpapi.Stack) {
			s.Set(ProjectionKey, Projection(s.Query.Select))
			s.Next()
		}).Named(rpapi.StageName("mongo.projection")),

		ParseQuerySort: rpapi.Func(func(s *rpapi.Stack) {
			s.Set(SortKey, Sort(s.Query.Sort))
			s.Next()
		}).Named(rpapi.StageName("mongo.sort")),
	}
}

func stackDoc(s *rpapi.Stack, key string, build func() bson.D) bson.D {
	if v, ok := s.Get(key); ok {
		if d, ok := v.(bson.D); ok {
			return d
		}
	}
	return build()
}

func filterOf(s *rpapi.Stack) bson.D {
	return stackDoc(s, FilterKey, func() bson.D { return Filter(s.Query.Filter) })
}

func projectionOf(s *rpapi.Stack) bson.D {
	return stackDoc(s, ProjectionKey, func() bson.D { return Projection(s.Query.Select) })
}

func sortOf(s *rpapi.Stack) bson.D {
	return stackDoc(s, SortKey, func() bson.D { return Sort(s.Query.Sort) })
}

// Normalize converts decoded BSON containers to plain maps and slices, the form
// rpapi resources read.
func Normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case bson.A:
		return normalizeList(t)
	case []any:
		return normalizeList(t)
	}
	return v
}

func normalizeList(l []any) []any {
	out := make([]any, len(l))
	for i, e := range l {
		out[i] = Normalize(e)
	}
	return out
}
