package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serveIdentity(secret, authHeader string) (*httptest.ResponseRecorder, string, string) {
	var identity, userID string
	h := Identity(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity = GetClientIdentity(r.Context())
		userID = GetUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/conversations", nil)
	req.RemoteAddr = "192.0.2.10:53211"
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, identity, userID
}

func TestIdentityFromIP(t *testing.T) {
	rec, identity, userID := serveIdentity(testSecret, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if identity != "ip:192.0.2.10" || userID != "" {
		t.Fatalf("identity = %q, user = %q", identity, userID)
	}
}

func TestIdentityFromBearerToken(t *testing.T) {
	token := signToken(t, testSecret, "alice", time.Now().Add(time.Hour))

	rec, identity, userID := serveIdentity(testSecret, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if identity != "user:alice" || userID != "alice" {
		t.Fatalf("identity = %q, user = %q", identity, userID)
	}
}

func TestIdentityRejectsBadTokens(t *testing.T) {
	tests := map[string]string{
		"wrong secret": "Bearer " + signToken(t, "other", "alice", time.Now().Add(time.Hour)),
		"expired":      "Bearer " + signToken(t, testSecret, "alice", time.Now().Add(-time.Hour)),
		"no subject":   "Bearer " + signToken(t, testSecret, "", time.Now().Add(time.Hour)),
		"not bearer":   "Basic dXNlcjpwYXNz",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			rec, _, _ := serveIdentity(testSecret, header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestIdentityIgnoresTokensWithoutSecret(t *testing.T) {
	rec, identity, _ := serveIdentity("", "Bearer whatever")
	if rec.Code != http.StatusOK || identity != "ip:192.0.2.10" {
		t.Fatalf("status = %d, identity = %q", rec.Code, identity)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing frame options")
	}
}

func TestValidateConversationID(t *testing.T) {
	if err := ValidateConversationID("Ab3xYz9Q"); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
	if err := ValidateConversationID("../../etc"); err == nil {
		t.Fatal("invalid id accepted")
	}
}
