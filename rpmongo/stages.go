package rpmongo

import (
	"context"

	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Pipe returns a stage that runs the aggregation pipeline built from the stack on
// coll and leaves the documents in s.Data.
func Pipe(coll Collection, build func(s *rpapi.Stack) (mongo.Pipeline, error)) rpapi.Handler {
	return rpapi.Func(func(s *rpapi.Stack) {
		pipeline, err := build(s)
		if err != nil {
			s.Fail(err)
			return
		}
		docs, err := aggregate(s.Context(), coll, pipeline)
		if err != nil {
			s.Fail(err)
			return
		}
		s.Data = docs
		s.Next()
	}).Named(rpapi.StageName("MongoPipe", coll.Name()))
}

// Load returns a task that loads the document whose _id is the stack value in and
// stores it, projected, under the stack value out. A missing document is NotFound.
func Load(coll Collection, in, out string, projection bson.D) rpapi.Task {
	return func(ctx context.Context, s *rpapi.Stack) error {
		id, ok := s.Get(in)
		if !ok {
			return errs.InternalServerError("stack value %q is not set", in)
		}
		pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}}}
		if projection != nil {
			pipeline = append(pipeline, bson.D{{Key: "$project", Value: projection}})
		}
		docs, err := aggregate(ctx, coll, pipeline)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return errs.NotFound("No %s with id %v.", coll.Name(), id)
		}
		s.Set(out, docs[0])
		return nil
	}
}

// Fetch is Load as a stage of its own.
func Fetch(coll Collection, in, out string, projection bson.D) rpapi.Handler {
	return Load(coll, in, out, projection).Handler(rpapi.StageName("MongoFetch", coll.Name(), in) + ` => ["` + out + `"]`)
}

func aggregate(ctx context.Context, coll Collection, pipeline mongo.Pipeline) ([]map[string]any, error) {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.FromMongo(err)
	}
	defer cur.Close(ctx)

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.FromMongo(err)
	}
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = Normalize(d).(map[string]any)
	}
	return out, nil
}

// NewResource declares a resource on api stored in coll. Query hooks the
// configuration leaves unset are filled from Hooks.
func NewResource(api *rpapi.API, coll Collection, cfg rpapi.ResourceConfig, opts ...Option) (*rpapi.Resource, error) {
	cfg.Controller = New(coll, opts...)
	if cfg.Name == "" {
		cfg.Name = coll.Name()
	}
	h := Hooks()
	if cfg.Hooks.ParseQueryFilter.IsZero() {
		cfg.Hooks.ParseQueryFilter = h.ParseQueryFilter
	}
	if cfg.Hooks.ParseQuerySelect.IsZero() {
		cfg.Hooks.ParseQuerySelect = h.ParseQuerySelect
	}
	if cfg.Hooks.ParseQuerySort.IsZero() {
		cfg.Hooks.ParseQuerySort = h.ParseQuerySort
	}
	return api.NewResource(cfg)
}
