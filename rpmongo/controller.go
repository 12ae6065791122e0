package rpmongo

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// Collection is the part of *mongo.Collection the controller uses.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	FindOneAndReplace(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.FindOneAndReplaceOptions) *mongo.SingleResult
	FindOneAndDelete(ctx context.Context, filter interface{}, opts ...*options.FindOneAndDeleteOptions) *mongo.SingleResult
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

var _ Collection = (*mongo.Collection)(nil)

// Controller implements rpapi.Controller over one collection.
type Controller struct {
	coll            Collection
	newID           func() any
	unfilteredWrite bool
}

var _ rpapi.Controller = (*Controller)(nil)

type Option func(*Controller)

// WithIDGenerator sets how ids are made for created documents that carry none. The
// default is primitive.NewObjectID.
func WithIDGenerator(f func() any) Option {
	return func(c *Controller) {
		c.newID = f
	}
}

// WithUnfilteredWrites lets collection-wide updates and deletes run without a filter.
func WithUnfilteredWrites() Option {
	return func(c *Controller) {
		c.unfilteredWrite = true
	}
}

func New(coll Collection, opts ...Option) *Controller {
	c := &Controller{
		coll:  coll,
		newID: func() any { return primitive.NewObjectID() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Collection() Collection {
	return c.coll
}

// primaryKey converts s.PrimaryKey with the resource's _id field, when it has one.
func (c *Controller) primaryKey(s *rpapi.Stack) (bson.D, error) {
	if s.PrimaryKey == "" {
		return nil, errs.BadRequest("Missing id.")
	}
	var id any = s.PrimaryKey
	if f, ok := s.Resource.FieldByPath("_id"); ok {
		v, err := f.ParseFromQueryString(s.PrimaryKey)
		if err != nil {
			return nil, errs.FromMongo(err)
		}
		id = v
	}
	return bson.D{{Key: "_id", Value: id}}, nil
}

func (c *Controller) notFound(s *rpapi.Stack) error {
	return errs.NotFound("No %s with id %s.", s.Resource.Name(), s.PrimaryKey)
}

// decodeOne reads a single result into s.Data. A missing document is NotFound.
func (c *Controller) decodeOne(s *rpapi.Stack, res *mongo.SingleResult) error {
	var doc bson.M
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return c.notFound(s)
		}
		return errs.FromMongo(err)
	}
	s.Data = Normalize(doc)
	return nil
}

// List finds one page of matching documents and counts every match concurrently.
func (c *Controller) List(s *rpapi.Stack) error {
	filter := filterOf(s)
	find := options.Find().
		SetSkip(int64(s.Query.Offset)).
		SetLimit(int64(s.Query.Limit))
	if p := projectionOf(s); p != nil {
		find.SetProjection(p)
	}
	if srt := sortOf(s); srt != nil {
		find.SetSort(srt)
	}

	g, ctx := errgroup.WithContext(s.Context())
	var (
		docs  []bson.M
		total int64
	)
	g.Go(func() error {
		cur, err := c.coll.Find(ctx, filter, find)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)
		return cur.All(ctx, &docs)
	})
	g.Go(func() error {
		n, err := c.coll.CountDocuments(ctx, filter)
		total = n
		return err
	})
	if err := g.Wait(); err != nil {
		return errs.FromMongo(err)
	}

	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = Normalize(d).(map[string]any)
	}
	s.Data = out
	s.Total = total
	return nil
}

func (c *Controller) Get(s *rpapi.Stack) error {
	id, err := c.primaryKey(s)
	if err != nil {
		return err
	}
	opts := options.FindOne()
	if p := projectionOf(s); p != nil {
		opts.SetProjection(p)
	}
	return c.decodeOne(s, c.coll.FindOne(s.Context(), id, opts))
}

// Create inserts s.Document, giving it an id when it has none.
func (c *Controller) Create(s *rpapi.Stack) error {
	doc := maps.Clone(s.Document)
	if doc == nil {
		doc = make(map[string]any)
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = c.newID()
	}
	res, err := c.coll.InsertOne(s.Context(), doc)
	if err != nil {
		return errs.FromMongo(err)
	}
	doc["_id"] = res.InsertedID
	s.Data = doc
	return nil
}

// Update sets the fields of s.Document on one document and returns it updated.
func (c *Controller) Update(s *rpapi.Stack) error {
	id, err := c.primaryKey(s)
	if err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: flatten(s.Document)}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return c.decodeOne(s, c.coll.FindOneAndUpdate(s.Context(), id, update, opts))
}

// UpdateMany sets the fields of s.Document on every document matching the query.
func (c *Controller) UpdateMany(s *rpapi.Stack) error {
	filter, err := c.writeFilter(s)
	if err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: flatten(s.Document)}}
	res, err := c.coll.UpdateMany(s.Context(), filter, update)
	if err != nil {
		return errs.FromMongo(err)
	}
	s.Data = rpapi.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}
	return nil
}

// Replace swaps one document for s.Document, keeping its id.
func (c *Controller) Replace(s *rpapi.Stack) error {
	id, err := c.primaryKey(s)
	if err != nil {
		return err
	}
	doc := make(map[string]any, len(s.Document))
	for k, v := range s.Document {
		if k != "_id" {
			doc[k] = v
		}
	}
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)
	return c.decodeOne(s, c.coll.FindOneAndReplace(s.Context(), id, doc, opts))
}

func (c *Controller) Delete(s *rpapi.Stack) error {
	id, err := c.primaryKey(s)
	if err != nil {
		return err
	}
	if err := c.decodeOne(s, c.coll.FindOneAndDelete(s.Context(), id)); err != nil {
		return err
	}
	s.Data = nil
	return nil
}

func (c *Controller) DeleteMany(s *rpapi.Stack) error {
	filter, err := c.writeFilter(s)
	if err != nil {
		return err
	}
	res, err := c.coll.DeleteMany(s.Context(), filter)
	if err != nil {
		return errs.FromMongo(err)
	}
	s.Data = rpapi.DeleteResult{Deleted: res.DeletedCount}
	return nil
}

func (c *Controller) writeFilter(s *rpapi.Stack) (bson.D, error) {
	filter := filterOf(s)
	if len(filter) == 0 && !c.unfilteredWrite {
		return nil, errs.BadRequest("A filter is required to change every %s.", s.Resource.Name())
	}
	return filter, nil
}

// flatten turns nested maps into dotted paths so that $set leaves sibling fields of
// embedded documents alone.
func flatten(doc map[string]any) bson.D {
	out := bson.D{}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			v := m[k]
			if sub, ok := v.(map[string]any); ok && len(sub) > 0 {
				walk(prefix+k+".", sub)
				continue
			}
			out = append(out, bson.E{Key: prefix + k, Value: v})
		}
	}
	walk("", doc)
	return out
}
