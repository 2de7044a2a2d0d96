package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/query"
	"github.com/clipstream/backend/internal/repositories"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// respondStoreError translates sentinel errors from the persistence and auth
// layers into the HTTP taxonomy. Anything unrecognised is a 500 and the
// underlying error is logged, never echoed to the caller.
func respondStoreError(ctx context.Context, w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, errorBody("resource not found"))
	case errors.Is(err, repositories.ErrConflict):
		respondJSON(ctx, w, http.StatusConflict, errorBody("resource already exists"))
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrRefreshTokenExpired):
		respondJSON(ctx, w, http.StatusUnauthorized, errorBody("invalid or expired refresh token"))
	default:
		logging.FromContext(ctx).Error(action+" failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// currentUserID pulls the authenticated user set by the auth middleware. A
// missing identifier on a guarded route is a wiring bug, reported as 401.
func currentUserID(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, errorBody("authentication required"))
		return "", false
	}
	return userID, true
}

func pageOptions(r *http.Request, labels query.Labels) query.Options {
	q := r.URL.Query()
	return query.NewOptions(q.Get("page"), q.Get("limit"), labels)
}
