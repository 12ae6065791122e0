package rpmongo

import (
	"testing"

	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/fields"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	nameField = fields.Must(fields.NewString(fields.Options{Path: "name"}))
	ageField  = fields.Must(fields.NewInteger(fields.Options{Path: "age"}))
	cityField = fields.Must(fields.NewString(fields.Options{Path: "address.city", PublicPath: "city"}))
)

func TestFilter(t *testing.T) {
	filter := Filter([]rpapi.Condition{
		{Field: nameField, Value: "ada"},
		{Field: ageField, Operator: fields.OpGte, Value: int64(18)},
		{Field: ageField, Operator: fields.OpLt, Value: int64(65)},
		{Field: cityField, Operator: fields.OpRegex, Value: "^Lon"},
		{Field: cityField, Operator: fields.OpExists, Value: true},
	})

	assert.Equal(t, bson.D{
		{Key: "name", Value: "ada"},
		{Key: "age", Value: bson.D{{Key: "$gte", Value: int64(18)}, {Key: "$lt", Value: int64(65)}}},
		{Key: "address.city", Value: bson.D{
			{Key: "$regex", Value: primitive.Regex{Pattern: "^Lon"}},
			{Key: "$exists", Value: true},
		}},
	}, filter)
}

func TestFilterEqualityWithOperators(t *testing.T) {
	filter := Filter([]rpapi.Condition{
		{Field: ageField, Value: int64(3)},
		{Field: ageField, Operator: fields.OpIn, Value: []any{int64(3), int64(4)}},
		{Field: nameField, Value: "a"},
		{Field: nameField, Value: "b"},
	})

	assert.Equal(t, bson.D{
		{Key: "age", Value: bson.D{{Key: "$eq", Value: int64(3)}, {Key: "$in", Value: []any{int64(3), int64(4)}}}},
		{Key: "$and", Value: bson.A{
			bson.D{{Key: "name", Value: "a"}},
			bson.D{{Key: "name", Value: "b"}},
		}},
	}, filter)

	assert.Equal(t, bson.D{}, Filter(nil))
}

func TestFilterRepeatedOperatorKeepsEveryCondition(t *testing.T) {
	filter := Filter([]rpapi.Condition{
		{Field: ageField, Operator: fields.OpGt, Value: int64(1)},
		{Field: ageField, Operator: fields.OpLt, Value: int64(90)},
		{Field: nameField, Value: "ada"},
		{Field: ageField, Operator: fields.OpGt, Value: int64(50)},
		{Field: cityField, Value: "London"},
		{Field: cityField, Value: "Paris"},
	})

	assert.Equal(t, bson.D{
		{Key: "name", Value: "ada"},
		{Key: "$and", Value: bson.A{
			bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(1)}, {Key: "$lt", Value: int64(90)}}}},
			bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(50)}}}},
			bson.D{{Key: "address.city", Value: "London"}},
			bson.D{{Key: "address.city", Value: "Paris"}},
		}},
	}, filter)
}

func TestEveryOperatorTranslates(t *testing.T) {
	for _, op := range fields.Operators() {
		assert.NotEmpty(t, operators[op], op)
	}
}

func TestProjectionAndSort(t *testing.T) {
	assert.Nil(t, Projection(nil))
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "address.city", Value: 1}},
		Projection([]fields.Field{nameField, cityField}))

	assert.Nil(t, Sort(nil))
	assert.Equal(t, bson.D{{Key: "age", Value: -1}, {Key: "name", Value: 1}},
		Sort([]rpapi.SortKey{{Field: ageField, Descending: true}, {Field: nameField}}))
}

func TestNormalize(t *testing.T) {
	in := bson.M{
		"a": bson.D{{Key: "b", Value: bson.A{bson.M{"c": 1}, "x"}}},
		"d": []any{bson.D{{Key: "e", Value: 2}}},
		"f": "plain",
	}
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": []any{map[string]any{"c": 1}, "x"}},
		"d": []any{map[string]any{"e": 2}},
		"f": "plain",
	}, Normalize(in))
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, bson.D{
		{Key: "address.city", Value: "Paris"},
		{Key: "address.zip", Value: "75001"},
		{Key: "empty", Value: map[string]any{}},
		{Key: "name", Value: "ada"},
	}, flatten(map[string]any{
		"name":    "ada",
		"empty":   map[string]any{},
		"address": map[string]any{"zip": "75001", "city": "Paris"},
	}))
}
