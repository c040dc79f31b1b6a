package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type principalKey struct{}

// principalSlot lets an outer middleware see the principal set further in.
type principalSlot struct{ name string }

type principalSlotKey struct{}

// WithPrincipal stores the principal name in the context.
func WithPrincipal(ctx context.Context, name string) context.Context {
	if slot, ok := ctx.Value(principalSlotKey{}).(*principalSlot); ok {
		slot.name = name
	}
	return context.WithValue(ctx, principalKey{}, name)
}

// PrincipalFromContext extracts the principal name from the context.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// BearerAuth requires an "Authorization: Bearer" token accepted by v whose
// subject is non-empty. Returns 401 otherwise.
func BearerAuth(v JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "missing bearer token")
				return
			}
			claims, err := v.Validate(r.Context(), strings.TrimPrefix(auth, "Bearer "))
			if err != nil || claims.Subject == "" {
				writeUnauthorized(w, "invalid bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims.Subject)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="cloudsathi"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":   "unauthenticated",
		"detail": detail,
	})
}
