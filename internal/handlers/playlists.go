package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
)

// PlaylistHandler implements playlist endpoints.
type PlaylistHandler struct {
	Playlists PlaylistStore
	NowFunc   func() time.Time
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/v1/playlists requests.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("name is required"))
		return
	}

	now := h.now()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		OwnerID:     userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Playlists.Create(ctx, playlist); err != nil {
		respondStoreError(ctx, w, err, "create playlist")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"playlist": playlist})
}

// ListForUser handles GET /api/v1/playlists/user/{userId} requests,
// returning a page labelled {totalPlaylists, playlists} with computed
// totalVideos per playlist.
func (h PlaylistHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := chi.URLParam(r, "userId")
	opts := pageOptions(r, query.Labels{Items: "playlists", Total: "totalPlaylists"})

	page, err := h.Playlists.ListForUser(ctx, userID, opts)
	if err != nil {
		respondStoreError(ctx, w, err, "list playlists")
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

// Get handles GET /api/v1/playlists/{playlistId} requests, returning the
// playlist with its videos and their owner details.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.Playlists.Detail(ctx, chi.URLParam(r, "playlistId"))
	if err != nil {
		respondStoreError(ctx, w, err, "load playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"playlist": playlist})
}

// Update handles PATCH /api/v1/playlists/{playlistId} requests, owner only.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	playlistID := chi.URLParam(r, "playlistId")
	if _, ok := h.ownedPlaylist(ctx, w, playlistID, userID); !ok {
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("name is required"))
		return
	}

	updated, err := h.Playlists.Update(ctx, playlistID, req.Name, strings.TrimSpace(req.Description))
	if err != nil {
		respondStoreError(ctx, w, err, "update playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"playlist": updated})
}

// Delete handles DELETE /api/v1/playlists/{playlistId} requests, owner only.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	playlistID := chi.URLParam(r, "playlistId")
	if _, ok := h.ownedPlaylist(ctx, w, playlistID, userID); !ok {
		return
	}

	if err := h.Playlists.Delete(ctx, playlistID); err != nil {
		respondStoreError(ctx, w, err, "delete playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "playlist deleted"})
}

// AddVideo handles PATCH /api/v1/playlists/add/{videoId}/{playlistId}
// requests. Adding a video that is already present is a no-op.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	playlistID := chi.URLParam(r, "playlistId")
	if _, ok := h.ownedPlaylist(ctx, w, playlistID, userID); !ok {
		return
	}

	if err := h.Playlists.AddVideo(ctx, playlistID, chi.URLParam(r, "videoId")); err != nil {
		respondStoreError(ctx, w, err, "add video to playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "video added to playlist"})
}

// RemoveVideo handles PATCH /api/v1/playlists/remove/{videoId}/{playlistId}
// requests. Removing a video that is not present is a no-op.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	playlistID := chi.URLParam(r, "playlistId")
	if _, ok := h.ownedPlaylist(ctx, w, playlistID, userID); !ok {
		return
	}

	if err := h.Playlists.RemoveVideo(ctx, playlistID, chi.URLParam(r, "videoId")); err != nil {
		respondStoreError(ctx, w, err, "remove video from playlist")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "video removed from playlist"})
}

// ownedPlaylist loads a playlist and enforces ownership, writing the error
// response itself when the check fails.
func (h PlaylistHandler) ownedPlaylist(ctx context.Context, w http.ResponseWriter, playlistID, userID string) (models.Playlist, bool) {
	playlist, err := h.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		respondStoreError(ctx, w, err, "load playlist")
		return models.Playlist{}, false
	}
	if playlist.OwnerID != userID {
		respondJSON(ctx, w, http.StatusForbidden, errorBody("only the owner may modify this playlist"))
		return models.Playlist{}, false
	}
	return playlist, true
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
