package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"esusu/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

const codeUnauthorized = "UNAUTHORIZED"

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// WithUserID returns ctx carrying userID as the authenticated caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Auth accepts "Authorization: Bearer <jwt>" signed with secret and puts the
// token subject on the request context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			switch {
			case scheme == "":
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			case !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "":
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid authorization header")
				return
			}
			claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
