// Package oas describes an rpapi API as an OpenAPI 3 document.
package oas

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/fields"
)

const objectIDPattern = "^[0-9a-fA-F]{24}$"

// Build creates the OpenAPI document of every route of api.
func Build(api *rpapi.API, info openapi3.Info) *openapi3.T {
	if info.Title == "" {
		info.Title = api.Name()
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &info,
		Paths:   openapi3.NewPaths(),
	}
	for _, r := range api.Routes() {
		p := Path(r.Path())
		item := doc.Paths.Value(p)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(p, item)
		}
		item.SetOperation(strings.ToUpper(r.Method()), operation(r))
	}
	return doc
}

// Handler serves the document of api as JSON. The document is built once, on the
// first request.
func Handler(api *rpapi.API, info openapi3.Info) gin.HandlerFunc {
	doc := sync.OnceValue(func() *openapi3.T { return Build(api, info) })
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, doc())
	}
}

// Path converts gin :param segments to OpenAPI {param} segments.
func Path(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			parts[i] = "{" + name + "}"
		}
	}
	return strings.Join(parts, "/")
}

func pathParams(p string) []string {
	var out []string
	for _, part := range strings.Split(p, "/") {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			out = append(out, name)
		}
	}
	return out
}

func operation(r *rpapi.Route) *openapi3.Operation {
	res := r.Resource()
	op := openapi3.NewOperation()
	op.OperationID = r.Name()
	op.Tags = []string{res.Name()}

	for _, name := range pathParams(r.Path()) {
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}
	addQueryParameters(op, r)

	doc := Document(res.Fields(), false)
	if r.IsWritable() {
		body := Document(res.Fields(), r.Method() != "patch")
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(body)}
	}

	switch {
	case r.Method() == "get" && r.IsDetail():
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("The item.").WithJSONSchema(doc))
		op.AddResponse(http.StatusNotFound, errorResponse("No item has this id."))
	case r.Method() == "get":
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("One page of matching items.").WithJSONSchema(listSchema(doc)))
	case r.Method() == "post":
		op.AddResponse(http.StatusCreated, openapi3.NewResponse().WithDescription("The created item.").WithJSONSchema(doc))
		op.AddResponse(http.StatusConflict, errorResponse("The item conflicts with a stored one."))
	case r.Method() == "delete" && r.IsDetail():
		op.AddResponse(http.StatusNoContent, openapi3.NewResponse().WithDescription("The item was deleted."))
		op.AddResponse(http.StatusNotFound, errorResponse("No item has this id."))
	case r.Method() == "delete":
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Count of deleted items.").WithJSONSchema(
			openapi3.NewObjectSchema().WithProperty("deleted", openapi3.NewInt64Schema())))
	case r.IsWritable() && r.IsDetail():
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("The updated item.").WithJSONSchema(doc))
		op.AddResponse(http.StatusNotFound, errorResponse("No item has this id."))
	case r.IsWritable():
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("Counts of matched and modified items.").WithJSONSchema(
			openapi3.NewObjectSchema().
				WithProperty("matched", openapi3.NewInt64Schema()).
				WithProperty("modified", openapi3.NewInt64Schema())))
	default:
		op.AddResponse(http.StatusOK, openapi3.NewResponse().WithDescription("OK"))
	}
	op.AddResponse(http.StatusBadRequest, errorResponse("The request is invalid."))
	op.AddResponse(0, errorResponse("Unexpected error."))
	return op
}

func addQueryParameters(op *openapi3.Operation, r *rpapi.Route) {
	q := r.Queryable()
	op.AddParameter(openapi3.NewQueryParameter(rpapi.QuerySelect).
		WithDescription("Comma separated fields to return: " + strings.Join(q.Selectable, ", ")).
		WithSchema(openapi3.NewStringSchema()))
	if r.IsDetail() {
		return
	}
	if r.Method() == "get" {
		op.AddParameter(openapi3.NewQueryParameter(rpapi.QuerySort).
			WithDescription("Comma separated fields to sort by, prefixed with - for descending order.").
			WithSchema(openapi3.NewStringSchema()))
		op.AddParameter(openapi3.NewQueryParameter(rpapi.QueryLimit).
			WithSchema(openapi3.NewIntegerSchema().WithMin(0).WithMax(float64(q.MaxLimit)).WithDefault(q.DefaultLimit)))
		op.AddParameter(openapi3.NewQueryParameter(rpapi.QueryOffset).
			WithSchema(openapi3.NewIntegerSchema().WithMin(0)))
	}
	for _, name := range q.Filterable {
		f, ok := r.Resource().Field(name)
		if !ok {
			continue
		}
		desc := "Equality filter. Append __op to the name for one of: " + strings.Join(f.SupportedOperators(), ", ")
		op.AddParameter(openapi3.NewQueryParameter(name).WithDescription(desc).WithSchema(openapi3.NewStringSchema()))
	}
}

// Document returns the object schema of a resource's public form.
func Document(fs []fields.Field, withRequired bool) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for _, f := range fs {
		s.WithProperty(f.PublicPath(), Schema(f))
		if withRequired && f.IsRequired() {
			s.Required = append(s.Required, f.PublicPath())
		}
	}
	return s
}

// Schema returns the schema of a field's public values.
func Schema(f fields.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch f.Kind() {
	case fields.KindString:
		s = openapi3.NewStringSchema()
		if str, ok := f.(*fields.String); ok {
			for _, e := range str.Enum() {
				s.Enum = append(s.Enum, e)
			}
		}
	case fields.KindInteger:
		s = openapi3.NewInt64Schema()
	case fields.KindFloat:
		s = openapi3.NewFloat64Schema()
	case fields.KindBoolean:
		s = openapi3.NewBoolSchema()
	case fields.KindDate:
		s = openapi3.NewStringSchema()
		if d, ok := f.(*fields.Date); ok && d.Layout() == time.RFC3339 {
			s = openapi3.NewDateTimeSchema()
		}
	case fields.KindObjectID:
		s = openapi3.NewStringSchema().WithPattern(objectIDPattern)
	default:
		s = openapi3.NewSchema()
	}
	if f.IsReferenceArray() {
		s = openapi3.NewArraySchema().WithItems(s)
	}
	if f.IsReference() {
		s.Description = "Id of a " + f.Reference() + " item."
	}
	return s
}

func listSchema(item *openapi3.Schema) *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("data", openapi3.NewArraySchema().WithItems(item)).
		WithProperty("total", openapi3.NewInt64Schema()).
		WithProperty("limit", openapi3.NewIntegerSchema()).
		WithProperty("offset", openapi3.NewIntegerSchema())
}

func errorResponse(desc string) *openapi3.Response {
	return openapi3.NewResponse().WithDescription(desc).WithJSONSchema(
		openapi3.NewObjectSchema().
			WithProperty("error", openapi3.NewStringSchema()).
			WithProperty("message", openapi3.NewStringSchema()).
			WithProperty("statusCode", openapi3.NewIntegerSchema()))
}
