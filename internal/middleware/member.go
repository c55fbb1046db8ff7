package middleware

import (
	"context"
	"net/http"

	"esusu/internal/apperr"

	"github.com/go-chi/chi/v5"
)

type MemberChecker interface {
	CheckMember(ctx context.Context, groupID, userID string) error
}

// RequireMember admits only members of the group named by the {id} route
// parameter. It must run after Auth.
func RequireMember(checker MemberChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
				return
			}
			if err := checker.CheckMember(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
				appErr := apperr.As(err)
				message := appErr.Message
				if appErr.Kind == apperr.KindInternal {
					message = "unable to verify membership"
				}
				writeError(w, apperr.HTTPStatus(appErr.Kind), string(appErr.Code), message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
