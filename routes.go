package rpapi

import (
	"net/http"

	"github.com/jeremywhuff/rpapi/errs"
)

// Controller performs the storage side of the default routes. Each method reads what
// it needs from the stack (PrimaryKey, Query, Document) and leaves its result in
// s.Data, s.Total and s.StatusCode. A returned error ends the chain.
type Controller interface {
	List(s *Stack) error
	Get(s *Stack) error
	Create(s *Stack) error
	Update(s *Stack) error
	UpdateMany(s *Stack) error
	Replace(s *Stack) error
	Delete(s *Stack) error
	DeleteMany(s *Stack) error
}

// UnimplementedController answers every operation with NotImplemented. Embed it to
// provide only some of the operations.
type UnimplementedController struct{}

func (UnimplementedController) List(*Stack) error       { return notImplemented("list") }
func (UnimplementedController) Get(*Stack) error        { return notImplemented("get") }
func (UnimplementedController) Create(*Stack) error     { return notImplemented("create") }
func (UnimplementedController) Update(*Stack) error     { return notImplemented("update") }
func (UnimplementedController) UpdateMany(*Stack) error { return notImplemented("updateMany") }
func (UnimplementedController) Replace(*Stack) error    { return notImplemented("replace") }
func (UnimplementedController) Delete(*Stack) error     { return notImplemented("delete") }
func (UnimplementedController) DeleteMany(*Stack) error { return notImplemented("deleteMany") }

func notImplemented(op string) error {
	return errs.NotImplemented("Operation %s is not implemented.", op)
}

// Call adapts a controller operation to a stage.
func Call(op func(*Stack) error) StackFunc {
	return func(s *Stack) {
		if err := op(s); err != nil {
			s.Fail(err)
			return
		}
		s.Next()
	}
}

func statusStage(code int, f StackFunc) StackFunc {
	return func(s *Stack) {
		s.StatusCode = code
		f(s)
	}
}

// defaultRoutes declares the CRUD routes of a resource. Writes without an id target
// every document matching the query filter; the id is read from the path, then from
// the id query parameter.
func defaultRoutes(r *Resource, q Queryable) []RouteConfig {
	c := r.controller
	idOr := func(name string, one, many func(*Stack) error) Handler {
		return Func(If(HasPrimaryKey, Call(one), Call(many))).Named(name)
	}

	update := func(name string) Handler {
		return idOr(name, c.Update, c.UpdateMany)
	}
	replace := func(name string) Handler {
		return idOr(name, c.Replace, c.UpdateMany)
	}
	remove := func(name string) Handler {
		return Func(If(HasPrimaryKey,
			statusStage(http.StatusNoContent, Call(c.Delete)),
			Call(c.DeleteMany),
		)).Named(name)
	}

	return []RouteConfig{
		{Name: r.name + ".list", Method: "get", Path: "/", Queryable: q,
			Handler: Func(Call(c.List)).Named(StageName("list", r.name))},
		{Name: r.name + ".get", Method: "get", Path: "/", IsDetail: true, Queryable: q,
			Handler: Func(Call(c.Get)).Named(StageName("get", r.name, "id"))},
		{Name: r.name + ".create", Method: "post", Path: "/", Queryable: q,
			Handler: Func(statusStage(http.StatusCreated, Call(c.Create))).Named(StageName("create", r.name))},

		{Name: r.name + ".updateMany", Method: "patch", Path: "/", Queryable: q,
			Handler: update(StageName("If => update/updateMany", r.name))},
		{Name: r.name + ".update", Method: "patch", Path: "/", IsDetail: true, Queryable: q,
			Handler: update(StageName("If => update/updateMany", r.name, "id"))},

		{Name: r.name + ".replaceMany", Method: "put", Path: "/", Queryable: q,
			Handler: replace(StageName("If => replace/updateMany", r.name))},
		{Name: r.name + ".replace", Method: "put", Path: "/", IsDetail: true, Queryable: q,
			Handler: replace(StageName("If => replace/updateMany", r.name, "id"))},

		{Name: r.name + ".deleteMany", Method: "delete", Path: "/", Queryable: q,
			Handler: remove(StageName("If => delete/deleteMany", r.name))},
		{Name: r.name + ".delete", Method: "delete", Path: "/", IsDetail: true, Queryable: q,
			Handler: remove(StageName("If => delete/deleteMany", r.name, "id"))},
	}
}
