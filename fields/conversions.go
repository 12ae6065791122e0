package fields

import (
	"time"

	"github.com/jeremywhuff/rpapi/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Date stores time.Time values and exposes them as strings in Layout.
// Layout defaults to time.RFC3339. Values are read and written in UTC.
type Date struct {
	Base
	layout string
}

func NewDate(opts Options) (*Date, error) {
	b, err := NewBase(KindDate, opts, numericOps...)
	if err != nil {
		return nil, err
	}
	layout := opts.Layout
	if layout == "" {
		layout = time.RFC3339
	}
	return &Date{Base: b, layout: layout}, nil
}

func (f *Date) Layout() string { return f.layout }

func (f *Date) ParseFromQueryString(raw string) (any, error) {
	t, err := time.Parse(f.layout, raw)
	if err != nil {
		return nil, &errs.CastError{Kind: KindDate, Value: raw, Err: err}
	}
	return t.UTC(), nil
}

func (f *Date) ToInternal(value any) any {
	if s, ok := value.(string); ok {
		if t, err := time.Parse(f.layout, s); err == nil {
			return t.UTC()
		}
	}
	return value
}

func (f *Date) ToPublic(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(f.layout)
	case primitive.DateTime:
		return v.Time().UTC().Format(f.layout)
	}
	return value
}

func (f *Date) Validate(value any) bool {
	if !f.Base.Validate(value) {
		return false
	}
	switch value.(type) {
	case nil, time.Time, primitive.DateTime:
		return true
	}
	return false
}

// ObjectID stores primitive.ObjectID values and exposes them as hex strings. With
// Options.ManyRefs set the value is a list of ids.
type ObjectID struct {
	Base
}

func NewObjectID(opts Options) (*ObjectID, error) {
	b, err := NewBase(KindObjectID, opts, OpNe, OpIn, OpNin, OpExists)
	if err != nil {
		return nil, err
	}
	return &ObjectID{Base: b}, nil
}

func (f *ObjectID) ParseFromQueryString(raw string) (any, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, &errs.CastError{Kind: KindObjectID, Value: raw, Err: err}
	}
	return id, nil
}

func (f *ObjectID) ToInternal(value any) any {
	if f.manyRefs {
		return mapList(value, f.toInternalOne)
	}
	return f.toInternalOne(value)
}

func (f *ObjectID) toInternalOne(value any) any {
	if s, ok := value.(string); ok {
		if id, err := primitive.ObjectIDFromHex(s); err == nil {
			return id
		}
	}
	return value
}

func (f *ObjectID) ToPublic(value any) any {
	if f.manyRefs {
		return mapList(value, f.toPublicOne)
	}
	return f.toPublicOne(value)
}

func (f *ObjectID) toPublicOne(value any) any {
	if id, ok := value.(primitive.ObjectID); ok {
		return id.Hex()
	}
	return value
}

func (f *ObjectID) Validate(value any) bool {
	if !f.Base.Validate(value) {
		return false
	}
	if value == nil {
		return true
	}
	if !f.manyRefs {
		_, ok := value.(primitive.ObjectID)
		return ok
	}
	list, ok := asList(value)
	if !ok {
		return false
	}
	for _, v := range list {
		if _, ok := v.(primitive.ObjectID); !ok {
			return false
		}
	}
	return true
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case primitive.A:
		return []any(v), true
	}
	return nil, false
}

func mapList(value any, f func(any) any) any {
	list, ok := asList(value)
	if !ok {
		return value
	}
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = f(v)
	}
	return out
}
