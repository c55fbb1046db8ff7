package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"esusu/internal/apperr"
	"esusu/internal/middleware"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError writes err as {"error", "code", "metadata"}. The cause of
// an internal error is logged and never sent to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	if appErr.Kind == apperr.KindInternal {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	body := map[string]any{
		"error": appErr.Message,
		"code":  appErr.Code,
	}
	if len(appErr.Metadata) > 0 {
		body["metadata"] = appErr.Metadata
	}
	respondJSON(w, apperr.HTTPStatus(appErr.Kind), body)
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

type page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
