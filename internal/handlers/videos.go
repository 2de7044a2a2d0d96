package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/event"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

// VideoHandler implements video publishing, listing and management endpoints.
type VideoHandler struct {
	Videos  VideoStore
	Users   UserStore
	Storage FileStorage
	Events  EventPublisher
	NowFunc func() time.Time
}

// List handles GET /api/v1/videos requests. Supported query parameters:
// page, limit, query (free text over title and description), sortBy,
// sortType and userId (owner filter). Only published videos are returned.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := query.Filter{
		OwnerID:  q.Get("userId"),
		Search:   q.Get("query"),
		SortBy:   q.Get("sortBy"),
		SortType: q.Get("sortType"),
	}
	opts := pageOptions(r, query.Labels{Items: "videos", Total: "totalVideos"})

	page, err := h.Videos.List(ctx, filter, opts)
	if err != nil {
		respondStoreError(ctx, w, err, "list videos")
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

// Publish handles POST /api/v1/videos requests. The body is multipart:
// title and description fields, a videoFile part (video/*) and a thumbnail
// part (image/*).
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("multipart form expected"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("title and description are required"))
		return
	}

	duration, _ := strconv.ParseFloat(r.FormValue("duration"), 64)
	if duration < 0 {
		duration = 0
	}

	videoURL, err := h.saveUpload(r, "videoFile", "videos", "video/")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("videoFile must be a video upload"))
		return
	}

	thumbnailURL, err := h.saveUpload(r, "thumbnail", "thumbnails", "image/")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("thumbnail must be an image upload"))
		return
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		VideoFile:   videoURL,
		Thumbnail:   thumbnailURL,
		Title:       title,
		Description: description,
		Duration:    duration,
		IsPublished: true,
		OwnerID:     userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		respondStoreError(ctx, w, err, "create video")
		return
	}

	if h.Events != nil {
		_ = h.Events.Publish(ctx, event.SubjectVideoPublished, map[string]string{
			"videoId": video.ID,
			"ownerId": userID,
		})
	}

	logger.Info("video published", "videoId", video.ID, "ownerId", userID)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{"video": video})
}

// Get handles GET /api/v1/videos/{videoId} requests. Fetching a video
// increments its view counter and records it in the caller's watch history.
// Unpublished videos are visible only to their owner.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	videoID := chi.URLParam(r, "videoId")
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "load video")
		return
	}

	if !video.IsPublished && video.OwnerID != userID {
		respondJSON(ctx, w, http.StatusNotFound, errorBody("resource not found"))
		return
	}

	if err := h.Videos.IncrementViews(ctx, videoID); err != nil {
		logger.Warn("increment views", "videoId", videoID, "error", err)
	} else {
		video.Views++
	}
	if err := h.Users.RecordWatch(ctx, userID, videoID); err != nil {
		logger.Warn("record watch history", "videoId", videoID, "error", err)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"video": video})
}

// Update handles PATCH /api/v1/videos/{videoId} requests. Title and
// description arrive as form fields; an optional thumbnail part replaces the
// stored image. Only the owner may update.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	videoID := chi.URLParam(r, "videoId")
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "load video")
		return
	}
	if video.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this video"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("multipart form expected"))
		return
	}

	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		video.Title = title
	}
	if description := strings.TrimSpace(r.FormValue("description")); description != "" {
		video.Description = description
	}
	if url, err := h.saveUpload(r, "thumbnail", "thumbnails", "image/"); err == nil {
		video.Thumbnail = url
	}
	video.UpdatedAt = h.now()

	if err := h.Videos.Update(ctx, video); err != nil {
		respondStoreError(ctx, w, err, "update video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"video": video})
}

// Delete handles DELETE /api/v1/videos/{videoId} requests. Only the owner may
// delete; comments, likes and playlist memberships cascade.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	videoID := chi.URLParam(r, "videoId")
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "load video")
		return
	}
	if video.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this video"))
		return
	}

	if err := h.Videos.Delete(ctx, videoID); err != nil {
		respondStoreError(ctx, w, err, "delete video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "video deleted"})
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	videoID := chi.URLParam(r, "videoId")
	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "load video")
		return
	}
	if video.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this video"))
		return
	}

	published := !video.IsPublished
	if err := h.Videos.SetPublished(ctx, videoID, published); err != nil {
		respondStoreError(ctx, w, err, "toggle publish state")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"isPublished": published})
}

func (h VideoHandler) saveUpload(r *http.Request, field, prefix, mimePrefix string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := checkMime(header, mimePrefix); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), filepath.Ext(header.Filename))
	return h.Storage.Save(r.Context(), name, file)
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
