package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

const maxCommentLength = 500

// CommentHandler implements video comment endpoints.
type CommentHandler struct {
	Comments CommentStore
	NowFunc  func() time.Time
}

type commentRequest struct {
	Content string `json:"content"`
}

// ListForVideo handles GET /api/v1/comments/{videoId} requests, returning a
// page labelled {totalComments, comments}, most recent first.
func (h CommentHandler) ListForVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := chi.URLParam(r, "videoId")
	opts := pageOptions(r, query.Labels{Items: "comments", Total: "totalComments"})

	page, err := h.Comments.ListForVideo(ctx, videoID, opts)
	if err != nil {
		respondStoreError(ctx, w, err, "list comments")
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

// Create handles POST /api/v1/comments/{videoId} requests. Responds 404 when
// the video does not exist.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	content, ok := decodeContent(w, r, maxCommentLength)
	if !ok {
		return
	}

	now := h.now()
	comment := models.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		VideoID:   chi.URLParam(r, "videoId"),
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Comments.Create(ctx, comment); err != nil {
		respondStoreError(ctx, w, err, "create comment")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"comment": comment})
}

// Update handles PATCH /api/v1/comments/c/{commentId} requests, owner only.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	commentID := chi.URLParam(r, "commentId")
	comment, err := h.Comments.FindByID(ctx, commentID)
	if err != nil {
		respondStoreError(ctx, w, err, "load comment")
		return
	}
	if comment.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this comment"))
		return
	}

	content, ok := decodeContent(w, r, maxCommentLength)
	if !ok {
		return
	}

	updated, err := h.Comments.UpdateContent(ctx, commentID, content)
	if err != nil {
		respondStoreError(ctx, w, err, "update comment")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"comment": updated})
}

// Delete handles DELETE /api/v1/comments/c/{commentId} requests, owner only.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	commentID := chi.URLParam(r, "commentId")
	comment, err := h.Comments.FindByID(ctx, commentID)
	if err != nil {
		respondStoreError(ctx, w, err, "load comment")
		return
	}
	if comment.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this comment"))
		return
	}

	if err := h.Comments.Delete(ctx, commentID); err != nil {
		respondStoreError(ctx, w, err, "delete comment")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "comment deleted"})
}

// decodeContent reads a {content} body and enforces the length bound.
func decodeContent(w http.ResponseWriter, r *http.Request, maxLen int) (string, bool) {
	ctx := r.Context()

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid request body"))
		return "", false
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxLen {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("content must be between 1 and "+strconv.Itoa(maxLen)+" characters"))
		return "", false
	}
	return content, true
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
