package fields

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jeremywhuff/rpapi/errs"
)

// ErrNaN is wrapped by the CastError returned when a numeric field cannot read a
// number from a query string.
var ErrNaN = errors.New("not a number")

const (
	KindString   = "string"
	KindInteger  = "integer"
	KindFloat    = "float"
	KindBoolean  = "boolean"
	KindDate     = "date"
	KindObjectID = "objectid"
)

var (
	stringOps  = []string{OpNe, OpIn, OpNin, OpRegex, OpExists}
	numericOps = []string{OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpExists}
	booleanOps = []string{OpNe, OpExists}
)

// String is a text field with optional length and enum rules.
type String struct {
	Base
	enum      []string
	minLength int
	maxLength int
}

func NewString(opts Options) (*String, error) {
	b, err := NewBase(KindString, opts, stringOps...)
	if err != nil {
		return nil, err
	}
	return &String{Base: b, enum: opts.Enum, minLength: opts.MinLength, maxLength: opts.MaxLength}, nil
}

func (f *String) Enum() []string { return f.enum }

func (f *String) Validate(value any) bool {
	if !f.Base.Validate(value) {
		return false
	}
	if value == nil {
		return true
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	n := utf8.RuneCountInString(s)
	if f.minLength > 0 && n < f.minLength {
		return false
	}
	if f.maxLength > 0 && n > f.maxLength {
		return false
	}
	if len(f.enum) > 0 {
		for _, e := range f.enum {
			if e == s {
				return true
			}
		}
		return false
	}
	return true
}

// Integer stores whole numbers as int64.
type Integer struct {
	Base
}

func NewInteger(opts Options) (*Integer, error) {
	b, err := NewBase(KindInteger, opts, numericOps...)
	if err != nil {
		return nil, err
	}
	return &Integer{Base: b}, nil
}

// ParseFromQueryString reads the leading integer of raw: "123.45" is 123 and "12px" is
// 12. A value with no leading digits fails with ErrNaN.
func (f *Integer) ParseFromQueryString(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return nil, &errs.CastError{Kind: KindInteger, Value: raw, Err: ErrNaN}
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return nil, &errs.CastError{Kind: KindInteger, Value: raw, Err: err}
	}
	return n, nil
}

// ToInternal converts integral JSON numbers to int64.
func (f *Integer) ToInternal(value any) any {
	switch v := value.(type) {
	case float64:
		if integral(v) {
			return int64(v)
		}
	case int:
		return int64(v)
	case int32:
		return int64(v)
	}
	return value
}

func (f *Integer) Validate(value any) bool {
	if !f.Base.Validate(value) {
		return false
	}
	switch v := value.(type) {
	case nil, int, int32, int64:
		return true
	case float64:
		return integral(v)
	}
	return false
}

// integral reports whether v is a whole number that fits in an int64.
func integral(v float64) bool {
	return v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64
}

// Float stores numbers as float64.
type Float struct {
	Base
}

func NewFloat(opts Options) (*Float, error) {
	b, err := NewBase(KindFloat, opts, numericOps...)
	if err != nil {
		return nil, err
	}
	return &Float{Base: b}, nil
}

func (f *Float) ParseFromQueryString(raw string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return nil, &errs.CastError{Kind: KindFloat, Value: raw, Err: ErrNaN}
	}
	return v, nil
}

func (f *Float) ToInternal(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return value
}

func (f *Float) Validate(value any) bool {
	if !f.Base.Validate(value) {
		return false
	}
	switch value.(type) {
	case nil, float64, float32, int, int32, int64:
		return true
	}
	return false
}

// Boolean stores true/false.
type Boolean struct {
	Base
}

func NewBoolean(opts Options) (*Boolean, error) {
	b, err := NewBase(KindBoolean, opts, booleanOps...)
	if err != nil {
		return nil, err
	}
	return &Boolean{Base: b}, nil
}

func (f *Boolean) ParseFromQueryString(raw string) (any, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, &errs.CastError{Kind: KindBoolean, Value: raw, Err: err}
	}
	return v, nil
}

func (f *Boolean) Validate(value any) bool {
	if !f.Base.Validate(value) {
		return false
	}
	switch value.(type) {
	case nil, bool:
		return true
	}
	return false
}
