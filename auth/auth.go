// Package auth provides authentication and authorization hooks for rpapi routes:
// bearer JWT verification and authorization rules written as expressions.
package auth

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremywhuff/rpapi"
	"github.com/jeremywhuff/rpapi/errs"
)

// ClaimsKey is the stack key under which Bearer stores the verified claims.
const ClaimsKey = "auth.claims"

// Bearer returns an authentication hook that requires an HS256 token in the
// Authorization header, signed with secret.
func Bearer(secret []byte, opts ...jwt.ParserOption) rpapi.Handler {
	opts = append([]jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}, opts...)
	parser := jwt.NewParser(opts...)

	return rpapi.Func(func(s *rpapi.Stack) {
		header := s.C.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			s.Fail(errs.Unauthorized("Missing bearer token."))
			return
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			s.Fail(errs.ErrUnauthorized.Wrap(fmt.Errorf("invalid token: %w", err)))
			return
		}

		s.Set(ClaimsKey, claims)
		s.Next()
	}).Named(rpapi.StageName("auth.Bearer"))
}

// Sign creates an HS256 token for claims.
func Sign(secret []byte, claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Claims returns the claims stored by Bearer, or nil.
func Claims(s *rpapi.Stack) jwt.MapClaims {
	v, ok := s.Get(ClaimsKey)
	if !ok {
		return nil
	}
	c, _ := v.(jwt.MapClaims)
	return c
}

// env is the evaluation environment of a Rule.
func env(s *rpapi.Stack) map[string]any {
	claims := map[string]any(Claims(s))
	if claims == nil {
		claims = map[string]any{}
	}
	query := map[string]any{}
	for k, v := range s.Request.URL.Query() {
		query[k] = v[len(v)-1]
	}
	return map[string]any{
		"claims": claims,
		"method": strings.ToUpper(s.Route.Method()),
		"path":   s.Request.URL.Path,
		"id":     s.PrimaryKey,
		"query":  query,
	}
}

var sampleEnv = map[string]any{
	"claims": map[string]any{},
	"method": "",
	"path":   "",
	"id":     "",
	"query":  map[string]any{},
}

// Rule returns an authorization hook that lets a request through when expression
// evaluates to true. The expression sees the token claims, the request method and
// path, the id of the targeted item and the query parameters, for example:
//
//	claims.role == "admin" || (method == "GET" && claims.sub == id)
func Rule(expression string) (rpapi.Handler, error) {
	program, err := expr.Compile(expression, expr.Env(sampleEnv), expr.AsBool())
	if err != nil {
		return rpapi.Handler{}, fmt.Errorf("compile %q: %w", expression, err)
	}
	return rpapi.Func(func(s *rpapi.Stack) {
		ok, err := run(program, s)
		if err != nil {
			s.Fail(errs.ErrForbidden.Wrap(err))
			return
		}
		if !ok {
			s.Fail(errs.Forbidden("Access denied."))
			return
		}
		s.Next()
	}).Named(rpapi.StageName("auth.Rule", expression)), nil
}

// MustRule is like Rule but panics on error.
func MustRule(expression string) rpapi.Handler {
	h, err := Rule(expression)
	if err != nil {
		panic(err)
	}
	return h
}

func run(program *vm.Program, s *rpapi.Stack) (bool, error) {
	out, err := expr.Run(program, env(s))
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}
