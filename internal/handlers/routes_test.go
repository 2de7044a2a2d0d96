package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipstream/backend/internal/auth"
)

// withURLParams attaches chi route parameters so handlers can be exercised
// without mounting the full router.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// asUser marks the request as authenticated.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

func TestRouterRejectsMissingToken(t *testing.T) {
	manager := auth.NewManager([]byte("router-secret"), time.Minute, time.Hour, auth.NewInMemoryRefreshStore())
	router := NewRouter(Dependencies{Verifier: manager})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRouterAcceptsBearerToken(t *testing.T) {
	manager := auth.NewManager([]byte("router-secret"), time.Minute, time.Hour, auth.NewInMemoryRefreshStore())

	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))

	router := NewRouter(Dependencies{
		Verifier: manager,
		Users:    store,
	})

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestRouterHealthAndMetricsAreOpen(t *testing.T) {
	router := NewRouter(Dependencies{})

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected %s to respond 200, got %d", path, rec.Code)
		}
	}
}
