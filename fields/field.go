// Package fields describes resource properties: how a value is stored, how it is
// exposed on the wire, how it is read from a query string and how it is validated.
package fields

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jeremywhuff/rpapi/errs"
)

// Query operators a field may support. Equality is implied when no operator is given
// and is always allowed.
const (
	OpNe     = "ne"
	OpGt     = "gt"
	OpGte    = "gte"
	OpLt     = "lt"
	OpLte    = "lte"
	OpIn     = "in"
	OpNin    = "nin"
	OpRegex  = "regex"
	OpExists = "exists"
)

var operators = []string{OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpRegex, OpExists}

// Operators lists every operator a field may declare.
func Operators() []string { return slices.Clone(operators) }

// ErrUnknownOperator is returned when a field is given an operator outside the
// Op constants.
var ErrUnknownOperator = errors.New("unknown operator")

// Field is the contract every field kind implements.
type Field interface {
	Kind() string
	Path() string
	PublicPath() string
	DefaultValue() any
	IsRequired() bool
	IsReference() bool
	IsReferenceArray() bool
	Reference() string
	SupportedOperators() []string

	ToPublic(value any) any
	ToInternal(value any) any
	ParseFromQueryString(raw string) (any, error)
	Validate(value any) bool
	ValidateOperator(op string) bool
}

// Options configures a field. Path is mandatory.
type Options struct {
	Path       string   `yaml:"path"`
	PublicPath string   `yaml:"publicPath"`
	Default    any      `yaml:"default"`
	Required   bool     `yaml:"required"`
	Reference  string   `yaml:"reference"` // Referenced resource name
	ManyRefs   bool     `yaml:"manyRefs"`  // References several items of Reference
	Operators  []string `yaml:"operators"` // Overrides the kind's default operators when non-nil
	Enum       []string `yaml:"enum"`      // String only
	MinLength  int      `yaml:"minLength"` // String only
	MaxLength  int      `yaml:"maxLength"` // String only
	Layout     string   `yaml:"layout"`    // Date only
}

// Base implements the default behaviour of Field. Kinds embed it and override what
// differs.
type Base struct {
	kind       string
	path       string
	publicPath string
	def        any
	required   bool
	reference  string
	manyRefs   bool
	operators  []string
}

// NewBase returns a Base of the given kind. defaultOps is used when opts.Operators is nil.
func NewBase(kind string, opts Options, defaultOps ...string) (Base, error) {
	if opts.Path == "" {
		return Base{}, errs.Required("path")
	}
	ops := opts.Operators
	if ops == nil {
		ops = defaultOps
	}
	for _, op := range ops {
		if !slices.Contains(operators, op) {
			return Base{}, fmt.Errorf("%s: %w %q", opts.Path, ErrUnknownOperator, op)
		}
	}
	return Base{
		kind:       kind,
		path:       opts.Path,
		publicPath: opts.PublicPath,
		def:        opts.Default,
		required:   opts.Required,
		reference:  opts.Reference,
		manyRefs:   opts.ManyRefs,
		operators:  slices.Clone(ops),
	}, nil
}

func (b *Base) Kind() string { return b.kind }

// Path is the internal (storage) path of the field.
func (b *Base) Path() string { return b.path }

// PublicPath is the wire name of the field. It defaults to Path.
func (b *Base) PublicPath() string {
	if b.publicPath == "" {
		return b.path
	}
	return b.publicPath
}

func (b *Base) DefaultValue() any      { return b.def }
func (b *Base) IsRequired() bool       { return b.required }
func (b *Base) IsReference() bool      { return b.reference != "" }
func (b *Base) IsReferenceArray() bool { return b.reference != "" && b.manyRefs }
func (b *Base) Reference() string      { return b.reference }

func (b *Base) SupportedOperators() []string {
	return slices.Clone(b.operators)
}

func (b *Base) ToPublic(value any) any   { return value }
func (b *Base) ToInternal(value any) any { return value }

func (b *Base) ParseFromQueryString(raw string) (any, error) {
	return raw, nil
}

// Validate reports whether value satisfies the required rule.
func (b *Base) Validate(value any) bool {
	return !(b.required && value == nil)
}

// ValidateOperator reports whether op may be used to filter on this field.
// An empty operator means equality and is always allowed.
func (b *Base) ValidateOperator(op string) bool {
	if op == "" {
		return true
	}
	return slices.Contains(b.operators, op)
}
