package middleware

import (
	"context"
	"net/http"
	"strings"
)

// IdentityResolver maps a bearer token to an identity string.
// An unknown token must resolve to "" (anonymous) without error; an error is
// reserved for the resolver's backing store being unavailable.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// identityKey is the context key under which the resolved identity is stored.
type identityKey struct{}

// NewIdentity returns a middleware that resolves the request's bearer token
// (if any) through res and stores the resulting identity in the request
// context. Requests without a token, or with a token the resolver does not
// recognize, proceed as anonymous. A resolver failure answers 503 — the
// request must not silently continue with a possibly wrong identity.
func NewIdentity(res IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ""
			if token := bearerToken(r); token != "" {
				id, err := res.Resolve(r.Context(), token)
				if err != nil {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusServiceUnavailable)
					_, _ = w.Write([]byte(`{"error":{"code":"unavailable","message":"identity resolution unavailable"}}`))
					return
				}
				identity = id
			}
			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identity returns the identity stored by NewIdentity, or "" for anonymous
// requests (including requests that never passed through the middleware).
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

// WithIdentity returns a context carrying the given identity.
// Intended for tests that exercise handlers without the full middleware stack.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
