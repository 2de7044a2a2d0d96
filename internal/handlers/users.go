package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
	"github.com/clipstream/backend/internal/repositories"
)

const maxUploadBytes = 256 << 20

// UserHandler implements account, session and channel endpoints.
type UserHandler struct {
	Users    UserStore
	Sessions SessionManager
	Storage  FileStorage
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User   models.User          `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register handles POST /api/v1/users/register requests. The body is
// multipart: fullName, username, email and password fields plus a required
// avatar image and an optional cover image.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondJSON(ctx, w, http.StatusTooManyRequests, errorBody("too many requests"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("multipart form expected"))
		return
	}

	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	fullName := strings.TrimSpace(r.FormValue("fullName"))
	password := r.FormValue("password")

	if username == "" || email == "" || fullName == "" || password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("fullName, username, email and password are required"))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid email address"))
		return
	}
	if len(password) < 8 {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("password must be at least 8 characters"))
		return
	}

	avatarURL, err := h.saveUpload(r, "avatar", "avatars", "image/")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("avatar image is required"))
		return
	}

	coverURL, err := h.saveUpload(r, "coverImage", "covers", "image/")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("cover image must be an image file"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	now := h.now()
	user := models.User{
		ID:         uuid.NewString(),
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Avatar:     avatarURL,
		CoverImage: coverURL,
		Password:   string(hash),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, errorBody("username or email already registered"))
			return
		}
		respondStoreError(ctx, w, err, "create user")
		return
	}

	logger.Info("user registered", "userId", user.ID, "username", user.Username)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{"user": user})
}

// Login handles POST /api/v1/users/login requests. Callers identify
// themselves by username or email.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondJSON(ctx, w, http.StatusTooManyRequests, errorBody("too many requests"))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if (req.Username == "" && req.Email == "") || req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("username or email and password are required"))
		return
	}

	user, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		logger.Warn("login user lookup failed", "username", req.Username, "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, errorBody("invalid credentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusUnauthorized, errorBody("invalid credentials"))
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("failed to create session"))
		return
	}

	setSessionCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, sessionResponse{User: user, Tokens: tokens})
}

// Logout handles POST /api/v1/users/logout requests.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	h.Sessions.Revoke(ctx, userID)
	clearSessionCookies(w)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "logged out"})
}

// RefreshToken handles POST /api/v1/users/refresh-token requests. The refresh
// token is read from the body or the refreshToken cookie, and is rotated on
// success.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.RefreshToken = ""
	}
	if req.RefreshToken == "" {
		if cookie, err := r.Cookie("refreshToken"); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("refresh token is required"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		respondStoreError(ctx, w, err, "refresh session")
		return
	}

	setSessionCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, map[string]any{"tokens": tokens})
}

// ChangePassword handles POST /api/v1/users/change-password requests.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("oldPassword and newPassword are required"))
		return
	}
	if len(req.NewPassword) < 8 {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("password must be at least 8 characters"))
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		respondStoreError(ctx, w, err, "load user")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("old password is incorrect"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if err := h.Users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		respondStoreError(ctx, w, err, "update password")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "password changed"})
}

// CurrentUser handles GET /api/v1/users/current-user requests.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		respondStoreError(ctx, w, err, "load user")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user})
}

// UpdateAccount handles PATCH /api/v1/users/update-account requests.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("fullName and email are required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("invalid email address"))
		return
	}

	user, err := h.Users.UpdateAccount(ctx, userID, req.FullName, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, errorBody("email already registered"))
			return
		}
		respondStoreError(ctx, w, err, "update account")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user})
}

// UpdateAvatar handles PATCH /api/v1/users/update-avatar requests.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "avatars", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/update-cover-image requests.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "covers", h.Users.UpdateCoverImage)
}

// Channel handles GET /api/v1/users/c/{username} requests.
func (h UserHandler) Channel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewerID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	username := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "username")))
	if username == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("username is required"))
		return
	}

	profile, err := h.Users.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		respondStoreError(ctx, w, err, "load channel profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"channel": profile})
}

// History handles GET /api/v1/users/history requests, returning the caller's
// paginated watch history, most recent first.
func (h UserHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	opts := pageOptions(r, query.Labels{Items: "history", Total: "totalEntries"})
	page, err := h.Users.WatchHistory(ctx, userID, opts)
	if err != nil {
		respondStoreError(ctx, w, err, "load watch history")
		return
	}

	respondJSON(ctx, w, http.StatusOK, page)
}

func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field, prefix string, update func(ctx context.Context, userID, url string) (models.User, error)) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("multipart form expected"))
		return
	}

	url, err := h.saveUpload(r, field, prefix, "image/")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody(field+" image is required"))
		return
	}

	user, err := update(ctx, userID, url)
	if err != nil {
		respondStoreError(ctx, w, err, "update "+field)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": user})
}

// saveUpload streams a multipart file to object storage under a random name
// keeping the original extension. The mimePrefix guards the declared content
// type (for example "image/").
func (h UserHandler) saveUpload(r *http.Request, field, prefix, mimePrefix string) (string, error) {
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

func checkMime(header *multipart.FileHeader, prefix string) error {
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, prefix) {
		return fmt.Errorf("unexpected content type %q", contentType)
	}
	return nil
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     "accessToken",
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    tokens.RefreshToken,
		Path:     "/",
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{"accessToken", "refreshToken"} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
}
