package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const identityContextKey contextKey = "identity"

// TokenHeader is the header the web client sends its token in.
const TokenHeader = "x-auth-token"

// Middleware authenticates API requests by JWT.
type Middleware struct {
	tokens *TokenIssuer
}

func NewMiddleware(tokens *TokenIssuer) *Middleware {
	return &Middleware{tokens: tokens}
}

// RequireAuth rejects requests without a valid token with 401. On success
// the caller's Identity is placed on the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "access denied, no token provided", "UNAUTHORIZED")
			return
		}
		id, err := m.tokens.Verify(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "invalid token", "UNAUTHORIZED")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequirePublisher rejects callers that are not publishers with 403.
// Must be used after RequireAuth.
func (m *Middleware) RequirePublisher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || !id.IsPublisher {
			writeAuthError(w, http.StatusForbidden, "access denied", "FORBIDDEN")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest reads x-auth-token, falling back to a Bearer Authorization header.
func tokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the authenticated caller, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
