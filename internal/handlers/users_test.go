package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/query"
	"github.com/clipstream/backend/internal/repositories"
)

type fakeUserStore struct {
	users   map[string]models.User
	watched []string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func testUser(id, username, email string) models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	return models.User{
		ID:       id,
		Username: username,
		Email:    email,
		FullName: "Test User",
		Password: string(hash),
	}
}

func (s *fakeUserStore) add(user models.User) {
	s.users[user.ID] = user
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	for _, user := range s.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) UpdateAccount(_ context.Context, userID, fullName, email string) (models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.FullName = fullName
	user.Email = email
	s.users[userID] = user
	return user, nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[userID] = user
	return nil
}

func (s *fakeUserStore) UpdateAvatar(_ context.Context, userID, url string) (models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.Avatar = url
	s.users[userID] = user
	return user, nil
}

func (s *fakeUserStore) UpdateCoverImage(_ context.Context, userID, url string) (models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.CoverImage = url
	s.users[userID] = user
	return user, nil
}

func (s *fakeUserStore) ChannelProfile(_ context.Context, username, viewerID string) (models.ChannelProfile, error) {
	for _, user := range s.users {
		if user.Username == username {
			return models.ChannelProfile{
				ID:               user.ID,
				Username:         user.Username,
				FullName:         user.FullName,
				SubscribersCount: 3,
				IsSubscribed:     viewerID != "",
			}, nil
		}
	}
	return models.ChannelProfile{}, repositories.ErrNotFound
}

func (s *fakeUserStore) RecordWatch(_ context.Context, userID, videoID string) error {
	s.watched = append(s.watched, userID+":"+videoID)
	return nil
}

func (s *fakeUserStore) WatchHistory(_ context.Context, userID string, opts query.Options) (query.Page[models.WatchEntry], error) {
	return query.NewPage([]models.WatchEntry{}, 0, opts), nil
}

// SaveRefreshToken and friends let the fake double as an auth.RefreshStore.
func (s *fakeUserStore) SaveRefreshToken(_ context.Context, userID, token string, _ time.Time) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = token
	s.users[userID] = user
	return nil
}

func (s *fakeUserStore) UserIDByRefreshToken(_ context.Context, token string) (string, time.Time, error) {
	for _, user := range s.users {
		if user.RefreshToken == token && token != "" {
			return user.ID, time.Now().UTC().Add(time.Hour), nil
		}
	}
	return "", time.Time{}, repositories.ErrNotFound
}

func (s *fakeUserStore) ClearRefreshToken(_ context.Context, userID string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = ""
	s.users[userID] = user
	return nil
}

type fakeStorage struct {
	saved map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: make(map[string][]byte)}
}

func (s *fakeStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[name] = data
	return "https://media.test/" + name, nil
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for field, contentType := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, field+".bin"))
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("create part %s: %v", field, err)
		}
		if _, err := part.Write([]byte("file-contents")); err != nil {
			t.Fatalf("write part %s: %v", field, err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUserHandlerRegister(t *testing.T) {
	store := newFakeUserStore()
	handler := UserHandler{Users: store, Storage: newFakeStorage()}

	body, contentType := multipartBody(t,
		map[string]string{
			"fullName": "Ada Lovelace",
			"username": "Ada",
			"email":    "ada@example.com",
			"password": "supersafe",
		},
		map[string]string{"avatar": "image/png"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	stored, err := store.FindByUsernameOrEmail(context.Background(), "ada", "")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if stored.Username != "ada" {
		t.Fatalf("expected lowercased username, got %q", stored.Username)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if !strings.HasPrefix(stored.Avatar, "https://media.test/avatars/") {
		t.Fatalf("expected uploaded avatar url, got %q", stored.Avatar)
	}

	if !strings.Contains(rec.Body.String(), `"username":"ada"`) {
		t.Fatalf("expected user in response: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") || strings.Contains(rec.Body.String(), "refreshToken") {
		t.Fatalf("sensitive fields leaked: %s", rec.Body.String())
	}
}

func TestUserHandlerRegisterRequiresAvatar(t *testing.T) {
	handler := UserHandler{Users: newFakeUserStore(), Storage: newFakeStorage()}

	body, contentType := multipartBody(t,
		map[string]string{
			"fullName": "Ada Lovelace",
			"username": "ada",
			"email":    "ada@example.com",
			"password": "supersafe",
		},
		nil,
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestUserHandlerRegisterDuplicate(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	handler := UserHandler{Users: store, Storage: newFakeStorage()}

	body, contentType := multipartBody(t,
		map[string]string{
			"fullName": "Another Ada",
			"username": "ada",
			"email":    "other@example.com",
			"password": "supersafe",
		},
		map[string]string{"avatar": "image/png"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestUserHandlerLogin(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	manager := auth.NewManager([]byte("secret"), time.Minute, time.Hour, store)
	handler := UserHandler{Users: store, Sessions: manager}

	body, _ := json.Marshal(loginRequest{Email: "ada@example.com", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", resp.Tokens)
	}
	if resp.User.ID != "user-1" {
		t.Fatalf("expected user-1, got %+v", resp.User)
	}

	cookies := rec.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		names[c.Name] = true
	}
	if !names["accessToken"] || !names["refreshToken"] {
		t.Fatalf("expected session cookies, got %v", names)
	}
}

func TestUserHandlerLoginByUsername(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	manager := auth.NewManager([]byte("secret"), time.Minute, time.Hour, store)
	handler := UserHandler{Users: store, Sessions: manager}

	body, _ := json.Marshal(loginRequest{Username: "ADA", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestUserHandlerLoginWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	manager := auth.NewManager([]byte("secret"), time.Minute, time.Hour, store)
	handler := UserHandler{Users: store, Sessions: manager}

	body, _ := json.Marshal(loginRequest{Username: "ada", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestUserHandlerRefreshTokenRotation(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	manager := auth.NewManager([]byte("secret"), time.Minute, time.Hour, store)
	handler := UserHandler{Users: store, Sessions: manager}

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.RefreshToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	// The old token must be unusable after rotation.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewReader(body))
	handler.RefreshToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d for rotated token, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestUserHandlerChangePassword(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	handler := UserHandler{Users: store}

	body, _ := json.Marshal(changePasswordRequest{OldPassword: "password123", NewPassword: "evensafer1"})
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	stored, _ := store.FindByID(context.Background(), "user-1")
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("evensafer1")) != nil {
		t.Fatal("expected new password to be stored hashed")
	}
}

func TestUserHandlerChangePasswordWrongOld(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	handler := UserHandler{Users: store}

	body, _ := json.Marshal(changePasswordRequest{OldPassword: "nope", NewPassword: "evensafer1"})
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestUserHandlerCurrentUserHidesSensitiveFields(t *testing.T) {
	store := newFakeUserStore()
	user := testUser("user-1", "ada", "ada@example.com")
	user.RefreshToken = "super-secret-refresh"
	store.add(user)
	handler := UserHandler{Users: store}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), "user-1")
	rec := httptest.NewRecorder()

	handler.CurrentUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if strings.Contains(rec.Body.String(), "super-secret-refresh") {
		t.Fatalf("refresh token leaked: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), user.Password) {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}
}

func TestUserHandlerChannel(t *testing.T) {
	store := newFakeUserStore()
	store.add(testUser("user-1", "ada", "ada@example.com"))
	handler := UserHandler{Users: store}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/c/ada", nil), "user-2")
	req = withURLParams(req, map[string]string{"username": "Ada"})
	rec := httptest.NewRecorder()

	handler.Channel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		Channel models.ChannelProfile `json:"channel"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Channel.Username != "ada" || resp.Channel.SubscribersCount != 3 || !resp.Channel.IsSubscribed {
		t.Fatalf("unexpected channel profile: %+v", resp.Channel)
	}
}

func TestUserHandlerChannelNotFound(t *testing.T) {
	handler := UserHandler{Users: newFakeUserStore()}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/users/c/ghost", nil), "user-1")
	req = withURLParams(req, map[string]string{"username": "ghost"})
	rec := httptest.NewRecorder()

	handler.Channel(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}
