package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAdmin(t *testing.T, secret, authHeader string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	if next == nil {
		next = func(w http.ResponseWriter, r *http.Request) {}
	}
	AdminJWT(secret)(next).ServeHTTP(rec, req)
	return rec
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec := serveAdmin(t, "", "Bearer x", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec := serveAdmin(t, "secret", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Fatalf("expected json error body, got %q", rec.Body.String())
	}
}

func TestAdminJWTInvalidToken(t *testing.T) {
	rec := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "wrong", time.Now().Add(5*time.Minute)), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTExpiredToken(t *testing.T) {
	rec := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "secret", time.Now().Add(-time.Hour)), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	token, err := IssueAdminToken("secret", "admin-user", 5*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	called := false
	rec := serveAdmin(t, "secret", "Bearer "+token, func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok || claims.Subject != "admin-user" {
			t.Fatalf("expected admin claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestIssueAdminTokenRequiresSecret(t *testing.T) {
	if _, err := IssueAdminToken("", "x", time.Minute); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func signedAdminToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "admin-user",
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
