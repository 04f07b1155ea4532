// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/httprate"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ClientIdentityKey is the context key for the rate limiting identity.
	ClientIdentityKey ContextKey = "client_identity"
	// UserIDKey is the context key for the bearer token subject.
	UserIDKey ContextKey = "user_id"
)

// Identity resolves who is calling. A valid HS256 bearer token makes the
// identity "user:<subject>"; requests without a token are identified by
// client IP as "ip:<addr>". A token that is present but invalid is
// rejected. With an empty secret tokens are ignored.
func Identity(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" && jwtSecret != "" {
				subject, ok := parseBearer(authHeader, jwtSecret)
				if !ok {
					http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
					return
				}
				ctx = context.WithValue(ctx, UserIDKey, subject)
				ctx = context.WithValue(ctx, ClientIdentityKey, "user:"+subject)
				recordClientIdentity(ctx, "user:"+subject)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ip, err := httprate.KeyByIP(r)
			if err != nil || ip == "" {
				ip = r.RemoteAddr
			}
			ctx = context.WithValue(ctx, ClientIdentityKey, "ip:"+ip)
			recordClientIdentity(ctx, "ip:"+ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(authHeader, secret string) (string, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// GetClientIdentity gets the client identity from context.
func GetClientIdentity(ctx context.Context) string {
	if v, ok := ctx.Value(ClientIdentityKey).(string); ok {
		return v
	}
	return ""
}

// GetUserID gets the bearer token subject from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
