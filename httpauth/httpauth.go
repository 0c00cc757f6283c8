// Package httpauth translates HTTP Authorization headers into engine calls.
// It parses Bearer and Basic credentials and offers a guard middleware that
// delegates every decision to [goIDP.Engine.Check].
//
// # What this package must NOT do
//
//   - Inspect or store tokens beyond forwarding them to the engine.
//   - Make authorization decisions of its own.
package httpauth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	goIDP "github.com/MrEthical07/goIDP"
)

// Scheme is the recognized Authorization scheme.
type Scheme string

const (
	SchemeBearer Scheme = "Bearer"
	SchemeBasic  Scheme = "Basic"
)

// ErrMalformedHeader reports an Authorization header that is absent, carries
// an unknown scheme, or has an undecodable payload.
var ErrMalformedHeader = errors.New("malformed authorization header")

// Credentials is a parsed Authorization header. Token is set for Bearer; ID
// and Password for Basic.
type Credentials struct {
	Scheme   Scheme
	Token    string
	ID       string
	Password string
}

// Parse decodes an Authorization header value.
func Parse(header string) (*Credentials, error) {
	scheme, rest, found := strings.Cut(header, " ")
	if !found || rest == "" {
		return nil, ErrMalformedHeader
	}

	switch {
	case strings.EqualFold(scheme, string(SchemeBearer)):
		return &Credentials{Scheme: SchemeBearer, Token: rest}, nil
	case strings.EqualFold(scheme, string(SchemeBasic)):
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, ErrMalformedHeader
		}
		id, password, found := strings.Cut(string(decoded), ":")
		if !found || id == "" {
			return nil, ErrMalformedHeader
		}
		return &Credentials{Scheme: SchemeBasic, ID: id, Password: password}, nil
	default:
		return nil, ErrMalformedHeader
	}
}

type subjectContextKey struct{}

// SubjectFromContext returns the verified subject injected by [RequireBearer].
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey{}).(string)
	return subject, ok
}

// RequireBearer guards an HTTP handler behind a bearer check with the given
// required scopes. The verified subject is injected into the request context.
func RequireBearer(engine *goIDP.Engine, requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			creds, err := Parse(r.Header.Get("Authorization"))
			if err != nil || creds.Scheme != SchemeBearer {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			subject, err := engine.Check(r.Context(), creds.Token, requiredScopes...)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
