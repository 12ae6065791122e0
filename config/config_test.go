package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/auth"
	"github.com/jeremywhuff/rpapi/fields"
	"github.com/jeremywhuff/rpapi/rpmongo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
api: shop
listen: ":9000"
mongo:
  uri: mongodb://db:27017
  database: shop
  timeout: 5s
log:
  level: debug
  format: json
auth:
  secret: s3cret
resources:
  - path: products
    authorization: 'claims.role == "admin" || method == "GET"'
    filterable: [price]
    maxLimit: 50
    fields:
      - kind: objectid
        path: _id
        publicPath: id
      - kind: string
        path: title
        required: true
      - kind: float
        path: price
  - path: orders
    collection: shop_orders
    unfilteredWrites: true
    fields:
      - kind: objectid
        path: product
        reference: products
`

func init() {
	gin.SetMode(gin.TestMode)
}

// named stands in for a collection. The routes tested here never reach it.
type named struct {
	rpmongo.Collection
	name string
}

func (n named) Name() string { return n.name }

func collections(seen *[]string) Collections {
	return func(name string) rpmongo.Collection {
		*seen = append(*seen, name)
		return named{name: name}
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "shop", cfg.API)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "/openapi.json", cfg.OpenAPI)
	assert.Equal(t, 5*time.Second, cfg.Mongo.Timeout)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	require.Len(t, cfg.Resources, 2)

	products := cfg.Resources[0]
	assert.Equal(t, []string{"price"}, products.Filterable)
	assert.Equal(t, 50, products.MaxLimit)
	require.Len(t, products.Fields, 3)
	assert.Equal(t, "objectid", products.Fields[0].Kind)
	assert.Equal(t, "id", products.Fields[0].PublicPath)
	assert.True(t, products.Fields[1].Required)

	assert.Equal(t, "shop_orders", cfg.Resources[1].collection())
	assert.Equal(t, "products", products.collection())
	assert.Equal(t, "products", cfg.Resources[1].Fields[0].Reference)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("api: [unclosed"))
	assert.Error(t, err)

	cases := map[string]string{
		"no api":        "api: ''",
		"bad level":     "log: {level: loud}",
		"no path":       "resources: [{name: x}]",
		"duplicate":     "resources: [{path: a}, {path: a}]",
		"no field kind": "resources: [{path: a, fields: [{path: b}]}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Parse([]byte(doc))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"RPAPI_LISTEN":         ":7000",
		"RPAPI_MONGO_URI":      "mongodb://other",
		"RPAPI_MONGO_TIMEOUT":  "1m",
		"RPAPI_LOG_SOURCE":     "true",
		"RPAPI_AUTH_SECRET":    "from-env",
		"UNRELATED_LOG_FORMAT": "json",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, "mongodb://other", cfg.Mongo.URI)
	assert.Equal(t, time.Minute, cfg.Mongo.Timeout)
	assert.True(t, cfg.Log.AddSource)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "from-env", cfg.Auth.Secret)

	env["RPAPI_MONGO_TIMEOUT"] = "soon"
	assert.Error(t, cfg.ApplyEnv(lookup))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rpapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	t.Setenv("RPAPI_API", "store")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "store", cfg.API)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf).Warn("shown", "k", 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])

	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestBuild(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	var seen []string
	api, err := cfg.Build(collections(&seen), nil, rpapi.WithLogger(nil))
	require.NoError(t, err)

	assert.Equal(t, "shop", api.Name())
	assert.Equal(t, []string{"products", "shop_orders"}, seen)

	products, ok := api.Resource("products")
	require.True(t, ok)
	price, ok := products.Field("price")
	require.True(t, ok)
	assert.Equal(t, fields.KindFloat, price.Kind())

	orders, ok := api.Resource("shop_orders")
	require.True(t, ok)
	assert.Equal(t, "orders", orders.Path())

	engine := gin.New()
	api.Mount(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/shop/products/1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.Sign([]byte("s3cret"), jwt.MapClaims{"sub": "1"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodDelete, "/shop/products/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBuildErrors(t *testing.T) {
	var seen []string

	cfg := Default()
	cfg.Resources = []ResourceConfig{{Path: "a", Fields: []FieldConfig{{Kind: "money", Options: fields.Options{Path: "x"}}}}}
	_, err := cfg.Build(collections(&seen), nil)
	assert.ErrorContains(t, err, "resources[0]: fields[0]")

	cfg = Default()
	cfg.Auth.Rule = "claims ==="
	_, err = cfg.Build(collections(&seen), nil)
	assert.Error(t, err)
}
