package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
	"github.com/clipstream/backend/internal/repositories"
)

type likeKey struct {
	target models.LikeTarget
	id     string
	user   string
}

type fakeLikeStore struct {
	likes   map[likeKey]bool
	targets map[string]bool
}

func newFakeLikeStore(existingTargets ...string) *fakeLikeStore {
	targets := make(map[string]bool, len(existingTargets))
	for _, id := range existingTargets {
		targets[id] = true
	}
	return &fakeLikeStore{likes: make(map[likeKey]bool), targets: targets}
}

func (s *fakeLikeStore) Toggle(_ context.Context, target models.LikeTarget, targetID, userID string) (bool, error) {
	if !s.targets[targetID] {
		return false, repositories.ErrNotFound
	}
	key := likeKey{target: target, id: targetID, user: userID}
	if s.likes[key] {
		delete(s.likes, key)
		return false, nil
	}
	s.likes[key] = true
	return true, nil
}

func (s *fakeLikeStore) LikedVideos(_ context.Context, userID string, opts query.Options) (query.Page[models.Video], error) {
	var liked []models.Video
	for key := range s.likes {
		if key.target == models.LikeTargetVideo && key.user == userID {
			liked = append(liked, models.Video{ID: key.id, IsPublished: true})
		}
	}
	return query.NewPage(liked, int64(len(liked)), opts), nil
}

func toggleResponse(t *testing.T, rec *httptest.ResponseRecorder) (bool, string) {
	t.Helper()
	var resp struct {
		Liked   bool   `json:"liked"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Liked, resp.Message
}

func TestLikeHandlerToggleRoundTrip(t *testing.T) {
	store := newFakeLikeStore("v1")
	handler := LikeHandler{Likes: store}

	toggleOnce := func() *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/likes/toggle/v/v1", nil), "user-1")
		req = withURLParams(req, map[string]string{"videoId": "v1"})
		rec := httptest.NewRecorder()
		handler.ToggleVideo(rec, req)
		return rec
	}

	rec := toggleOnce()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	liked, message := toggleResponse(t, rec)
	if !liked || message != "liked" {
		t.Fatalf("expected first toggle to like, got liked=%v message=%q", liked, message)
	}

	rec = toggleOnce()
	liked, message = toggleResponse(t, rec)
	if liked || message != "like removed" {
		t.Fatalf("expected second toggle to remove, got liked=%v message=%q", liked, message)
	}

	// Two toggles restore the starting point.
	if len(store.likes) != 0 {
		t.Fatalf("expected no likes after a round trip, got %v", store.likes)
	}
}

func TestLikeHandlerToggleMissingTarget(t *testing.T) {
	handler := LikeHandler{Likes: newFakeLikeStore()}

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/likes/toggle/t/ghost", nil), "user-1")
	req = withURLParams(req, map[string]string{"tweetId": "ghost"})
	rec := httptest.NewRecorder()

	handler.ToggleTweet(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestLikeHandlerVideosEnvelope(t *testing.T) {
	store := newFakeLikeStore("v1")
	handler := LikeHandler{Likes: store}

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/likes/toggle/v/v1", nil), "user-1")
	req = withURLParams(req, map[string]string{"videoId": "v1"})
	handler.ToggleVideo(httptest.NewRecorder(), req)

	req = asUser(httptest.NewRequest(http.MethodGet, "/api/v1/likes/videos", nil), "user-1")
	rec := httptest.NewRecorder()

	handler.Videos(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var decoded map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded["totalVideos"] != float64(1) {
		t.Fatalf("expected totalVideos=1, got %v", decoded)
	}
	items, ok := decoded["videos"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one liked video under videos label, got %v", decoded["videos"])
	}
}
