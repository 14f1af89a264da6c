// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

// PrincipalKey holds the authenticated *Principal.
const PrincipalKey ContextKey = "principal"

// ScopeFAQAdmin grants access to catalog administration.
const ScopeFAQAdmin = "faq:admin"

// Claims are the admin token claims.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scope"`
}

// Principal is the caller identified by a verified token.
type Principal struct {
	Subject string
	Scopes  []string
}

// AuthConfig configures token verification. Issuer and Audience are checked only when set.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Auth verifies HMAC-signed bearer tokens and stores the Principal in the request context.
// Tokens must carry an expiry.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(cfg.Secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				jsonError(w, http.StatusUnauthorized, "missing or malformed bearer token")
				return
			}

			claims := &Claims{}
			_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				jsonError(w, http.StatusUnauthorized, "token expired")
				return
			case err != nil:
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			p := &Principal{Subject: claims.Subject, Scopes: claims.Scopes}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), PrincipalKey, p)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}

// GetUserID returns the token subject, or "".
func GetUserID(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.Subject
	}
	return ""
}

// HasScope checks if the caller was granted scope.
func HasScope(ctx context.Context, scope string) bool {
	p := PrincipalFrom(ctx)
	return p != nil && slices.Contains(p.Scopes, scope)
}

// RequireScope rejects callers without scope with 403.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(r.Context(), scope) {
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
