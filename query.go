package rpapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jeremywhuff/rpapi/errs"
	"github.com/jeremywhuff/rpapi/fields"
)

// Reserved query string keys. Every other key not starting with "_" is a filter of
// the form field=value or field__op=value. QueryID names an item, and is only a
// filter when the resource declares a filterable id field.
const (
	QuerySelect = "_select"
	QuerySort   = "_sort"
	QueryLimit  = "_limit"
	QueryOffset = "_offset"
	QueryID     = "id"

	operatorSep = "__"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Query is the parsed form of a request's query string.
type Query struct {
	Filter []Condition
	Select []fields.Field
	Sort   []SortKey
	Limit  int
	Offset int
}

// Condition is one filter directive. Operator is empty for equality. Value holds the
// internal representation, or a []any for the in/nin operators.
type Condition struct {
	Field    fields.Field
	Operator string
	Value    any
}

type SortKey struct {
	Field      fields.Field
	Descending bool
}

// Queryable lists, by public path, what a route lets clients filter, sort and select
// on. A nil list allows every field of the resource.
type Queryable struct {
	Filterable   []string
	Sortable     []string
	Selectable   []string
	DefaultLimit int
	MaxLimit     int
}

// queryable is Queryable resolved against a resource's fields.
type queryable struct {
	filterable   map[string]fields.Field
	sortable     map[string]fields.Field
	selectable   map[string]fields.Field
	defaultLimit int
	maxLimit     int
}

func (q Queryable) compute(r *Resource) (queryable, error) {
	var out queryable
	var err error
	if out.filterable, err = r.fieldSet(q.Filterable); err != nil {
		return out, fmt.Errorf("filterable: %w", err)
	}
	if out.sortable, err = r.fieldSet(q.Sortable); err != nil {
		return out, fmt.Errorf("sortable: %w", err)
	}
	if out.selectable, err = r.fieldSet(q.Selectable); err != nil {
		return out, fmt.Errorf("selectable: %w", err)
	}

	out.defaultLimit = q.DefaultLimit
	if out.defaultLimit <= 0 {
		out.defaultLimit = DefaultLimit
	}
	out.maxLimit = q.MaxLimit
	if out.maxLimit <= 0 {
		out.maxLimit = MaxLimit
	}
	if out.defaultLimit > out.maxLimit {
		out.defaultLimit = out.maxLimit
	}
	return out, nil
}

// ParseQueryString reads filter, projection, sort and pagination directives from the
// request URL into s.Query.
func (s *Stack) ParseQueryString() error {
	q := s.Route.queryable
	s.Query = Query{Limit: q.defaultLimit}

	values := s.Request.URL.Query()

	// Walk keys in order so that errors are deterministic.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raws := values[key]
		var err error
		switch key {
		case QuerySelect:
			s.Query.Select, err = parseSelect(raws, q.selectable)
		case QuerySort:
			s.Query.Sort, err = parseSort(raws, q.sortable)
		case QueryLimit:
			s.Query.Limit, err = parseCount(key, raws)
			if err == nil {
				if s.Query.Limit == 0 {
					s.Query.Limit = q.defaultLimit
				}
				if s.Query.Limit > q.maxLimit {
					s.Query.Limit = q.maxLimit
				}
			}
		case QueryOffset:
			s.Query.Offset, err = parseCount(key, raws)
		default:
			if strings.HasPrefix(key, "_") {
				continue
			}
			if _, ok := q.filterable[key]; key == QueryID && !ok {
				continue
			}
			var conds []Condition
			conds, err = parseFilter(key, raws, q.filterable)
			s.Query.Filter = append(s.Query.Filter, conds...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func splitList(raws []string) []string {
	var out []string
	for _, raw := range raws {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseSelect(raws []string, allowed map[string]fields.Field) ([]fields.Field, error) {
	var out []fields.Field
	for _, name := range splitList(raws) {
		f, ok := allowed[name]
		if !ok {
			return nil, errs.BadRequest("%s", fields.ForbiddenFieldMessage(name))
		}
		out = append(out, f)
	}
	return out, nil
}

func parseSort(raws []string, allowed map[string]fields.Field) ([]SortKey, error) {
	var out []SortKey
	for _, name := range splitList(raws) {
		desc := strings.HasPrefix(name, "-")
		name = strings.TrimLeft(name, "+-")
		f, ok := allowed[name]
		if !ok {
			return nil, errs.BadRequest("%s", fields.ForbiddenFieldMessage(name))
		}
		out = append(out, SortKey{Field: f, Descending: desc})
	}
	return out, nil
}

// parseCount reads a non-negative integer; the last value wins.
func parseCount(key string, raws []string) (int, error) {
	raw := raws[len(raws)-1]
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, errs.BadRequest("%s", fields.BadTypeMessage(key, "non-negative integer", strconv.Quote(raw)))
	}
	return n, nil
}

func parseFilter(key string, raws []string, allowed map[string]fields.Field) ([]Condition, error) {
	name, op, _ := strings.Cut(key, operatorSep)

	f, ok := allowed[name]
	if !ok {
		return nil, errs.BadRequest("%s", fields.ForbiddenFieldMessage(name))
	}
	if !f.ValidateOperator(op) {
		return nil, errs.BadRequest("%s", fields.ForbiddenOperatorMessage(name, op))
	}

	out := make([]Condition, 0, len(raws))
	for _, raw := range raws {
		v, err := parseFilterValue(f, op, raw)
		if err != nil {
			return nil, errs.ErrBadRequest.Wrap(fmt.Errorf("%s: %w", name, err))
		}
		out = append(out, Condition{Field: f, Operator: op, Value: v})
	}
	return out, nil
}

func parseFilterValue(f fields.Field, op, raw string) (any, error) {
	switch op {
	case fields.OpExists:
		return strconv.ParseBool(raw)
	case fields.OpRegex:
		return raw, nil
	case fields.OpIn, fields.OpNin:
		parts := splitList([]string{raw})
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := f.ParseFromQueryString(p)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return f.ParseFromQueryString(raw)
}
