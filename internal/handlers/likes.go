package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipstream/backend/internal/event"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

// LikeHandler implements like toggle and listing endpoints.
type LikeHandler struct {
	Likes  LikeStore
	Events EventPublisher
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId} requests.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetVideo, chi.URLParam(r, "videoId"))
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId} requests.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetComment, chi.URLParam(r, "commentId"))
}

// ToggleTweet handles POST /api/v1/likes/toggle/t/{tweetId} requests.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetTweet, chi.URLParam(r, "tweetId"))
}

// Videos handles GET /api/v1/likes/videos requests, returning the caller's
// liked videos as a page labelled {totalVideos, videos}.
func (h LikeHandler) Videos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	opts := pageOptions(r, query.Labels{Items: "videos", Total: "totalVideos"})
	page, err := h.Likes.LikedVideos(ctx, userID, opts)
	if err != nil {
		respondStoreError(ctx, w, err, "list liked videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

// toggle removes an existing like or creates one, in a single transaction.
// The same call repeated flips the state back, so two calls always restore
// the starting point.
func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, target models.LikeTarget, targetID string) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	liked, err := h.Likes.Toggle(ctx, target, targetID, userID)
	if err != nil {
		respondStoreError(ctx, w, err, "toggle like")
		return
	}

	if h.Events != nil {
		_ = h.Events.Publish(ctx, event.SubjectLikeToggled, map[string]any{
			"target":   target,
			"targetId": targetID,
			"userId":   userID,
			"liked":    liked,
		})
	}

	message := "liked"
	if !liked {
		message = "like removed"
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"liked": liked, "message": message})
}
