package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremywhuff/rpapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(t *testing.T, authz rpapi.Handler) *gin.Engine {
	t.Helper()
	api, err := rpapi.New("api", rpapi.WithLogger(nil), rpapi.WithAuthentication(Bearer(secret)))
	require.NoError(t, err)

	_, err = api.NewResource(rpapi.ResourceConfig{
		Path:                 "accounts",
		DisableDefaultRoutes: true,
		Authable:             rpapi.Authable{Authorization: authz},
		Routes: []rpapi.RouteConfig{{
			Path:     "/",
			IsDetail: true,
			Handler: rpapi.Func(func(s *rpapi.Stack) {
				s.Data = rpapi.H{"sub": Claims(s)["sub"]}
				s.Next()
			}),
		}},
	})
	require.NoError(t, err)

	engine := gin.New()
	api.Mount(engine)
	return engine
}

func get(engine *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func sign(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := Sign(key, claims)
	require.NoError(t, err)
	return token
}

func TestBearer(t *testing.T) {
	engine := newEngine(t, rpapi.Handler{})

	w := get(engine, "/api/accounts/42", sign(t, secret, jwt.MapClaims{"sub": "42"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "42", out["sub"])
}

func TestBearerRejects(t *testing.T) {
	engine := newEngine(t, rpapi.Handler{})
	expired := jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Hour).Unix()}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":     "",
		"garbage":     "not-a-token",
		"wrong key":   sign(t, []byte("other"), jwt.MapClaims{"sub": "42"}),
		"expired":     sign(t, secret, expired),
		"alg is none": none,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			w := get(engine, "/api/accounts/42", token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRule(t *testing.T) {
	engine := newEngine(t, MustRule(`claims.role == "admin" || (method == "GET" && claims.sub == id)`))

	w := get(engine, "/api/accounts/42", sign(t, secret, jwt.MapClaims{"sub": "42"}))
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(engine, "/api/accounts/7", sign(t, secret, jwt.MapClaims{"sub": "42"}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(engine, "/api/accounts/7", sign(t, secret, jwt.MapClaims{"sub": "42", "role": "admin"}))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRuleQuery(t *testing.T) {
	engine := newEngine(t, MustRule(`query.tenant == claims.tenant`))

	token := sign(t, secret, jwt.MapClaims{"sub": "1", "tenant": "acme"})
	assert.Equal(t, http.StatusOK, get(engine, "/api/accounts/1?tenant=acme", token).Code)
	assert.Equal(t, http.StatusForbidden, get(engine, "/api/accounts/1?tenant=other", token).Code)
}

func TestRuleCompileErrors(t *testing.T) {
	_, err := Rule(`unknown == 1`)
	assert.Error(t, err)

	_, err = Rule(`method`)
	assert.Error(t, err)

	assert.Panics(t, func() { MustRule(`(`) })
}
