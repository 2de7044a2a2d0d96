package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

const maxTweetLength = 280

// TweetHandler implements tweet endpoints.
type TweetHandler struct {
	Tweets  TweetStore
	NowFunc func() time.Time
}

// Create handles POST /api/v1/tweets requests.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	content, ok := decodeContent(w, r, maxTweetLength)
	if !ok {
		return
	}

	now := h.now()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		Content:   content,
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Tweets.Create(ctx, tweet); err != nil {
		respondStoreError(ctx, w, err, "create tweet")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"tweet": tweet})
}

// ListForUser handles GET /api/v1/tweets/user/{userId} requests, returning a
// page labelled {totalTweets, tweets}.
func (h TweetHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := chi.URLParam(r, "userId")
	opts := pageOptions(r, query.Labels{Items: "tweets", Total: "totalTweets"})

	page, err := h.Tweets.ListForUser(ctx, userID, opts)
	if err != nil {
		respondStoreError(ctx, w, err, "list tweets")
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

// Update handles PATCH /api/v1/tweets/{tweetId} requests, owner only.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	tweetID := chi.URLParam(r, "tweetId")
	tweet, err := h.Tweets.FindByID(ctx, tweetID)
	if err != nil {
		respondStoreError(ctx, w, err, "load tweet")
		return
	}
	if tweet.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this tweet"))
		return
	}

	content, ok := decodeContent(w, r, maxTweetLength)
	if !ok {
		return
	}

	updated, err := h.Tweets.UpdateContent(ctx, tweetID, content)
	if err != nil {
		respondStoreError(ctx, w, err, "update tweet")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"tweet": updated})
}

// Delete handles DELETE /api/v1/tweets/{tweetId} requests, owner only.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	tweetID := chi.URLParam(r, "tweetId")
	tweet, err := h.Tweets.FindByID(ctx, tweetID)
	if err != nil {
		respondStoreError(ctx, w, err, "load tweet")
		return
	}
	if tweet.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this tweet"))
		return
	}

	if err := h.Tweets.Delete(ctx, tweetID); err != nil {
		respondStoreError(ctx, w, err, "delete tweet")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "tweet deleted"})
}

func (h TweetHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
