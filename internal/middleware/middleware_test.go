package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/faqbot/internal/model"
	"github.com/capitalize-ai/faqbot/pkg/logger"
)

const testSecret = "test-secret"

func adminClaims(scopes ...string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-1",
			Issuer:    "faqbot",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	}
}

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Auth(AuthConfig{Secret: testSecret, Issuer: "faqbot"}))
	r.With(RequireScope(ScopeFAQAdmin)).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context())))
	})
	return r
}

func TestAuth(t *testing.T) {
	expired := adminClaims(ScopeFAQAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	otherIssuer := adminClaims(ScopeFAQAdmin)
	otherIssuer.Issuer = "someone-else"

	noExpiry := adminClaims(ScopeFAQAdmin)
	noExpiry.ExpiresAt = nil

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing or malformed bearer token"},
		{"bad scheme", "Basic abc", http.StatusUnauthorized, "missing or malformed bearer token"},
		{"bad token", "Bearer not-a-jwt", http.StatusUnauthorized, "invalid token"},
		{"wrong secret", "Bearer " + sign(t, "other", adminClaims(ScopeFAQAdmin)), http.StatusUnauthorized, "invalid token"},
		{"expired", "Bearer " + sign(t, testSecret, expired), http.StatusUnauthorized, "token expired"},
		{"wrong issuer", "Bearer " + sign(t, testSecret, otherIssuer), http.StatusUnauthorized, "invalid token"},
		{"no expiry", "Bearer " + sign(t, testSecret, noExpiry), http.StatusUnauthorized, "invalid token"},
		{"missing scope", "Bearer " + sign(t, testSecret, adminClaims()), http.StatusForbidden, "insufficient permissions"},
		{"admin", "bearer " + sign(t, testSecret, adminClaims(ScopeFAQAdmin)), http.StatusOK, "admin-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			adminRouter().ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
			if tc.status != http.StatusOK {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAuthRejectsNoneAlgorithm(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, adminClaims(ScopeFAQAdmin)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	adminRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoggingCorrelationID(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Use(Logging(logger.NewNop()))
	r.Get("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "corr-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "corr-42", seen)
	assert.Equal(t, "corr-42", rec.Header().Get("X-Correlation-ID"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestValidateStruct(t *testing.T) {
	err := ValidateStruct(model.SearchRequest{})
	assert.EqualError(t, err, "query is required")

	err = ValidateStruct(model.SearchRequest{Query: "hi", SessionID: "nope"})
	assert.EqualError(t, err, "sessionId must be a UUID")

	helpful := true
	err = ValidateStruct(model.Feedback{QueryLogID: "0190a5f4-7c1e-7000-8000-000000000001", Helpful: &helpful, Type: "great"})
	assert.ErrorContains(t, err, "feedbackType must be one of")

	assert.NoError(t, ValidateStruct(model.SearchRequest{Query: "hi"}))
	assert.Error(t, ValidateSessionID("abc"))
	assert.NoError(t, ValidateSessionID("0190a5f4-7c1e-7000-8000-000000000001"))
}

func TestHasScope(t *testing.T) {
	ctx := context.WithValue(context.Background(), PrincipalKey, &Principal{Subject: "u", Scopes: []string{"a", ScopeFAQAdmin}})
	assert.True(t, HasScope(ctx, ScopeFAQAdmin))
	assert.False(t, HasScope(context.Background(), ScopeFAQAdmin))
}
