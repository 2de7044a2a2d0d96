package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-signing-secret")

func TestManagerIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRefreshStore()
	manager := NewManager(testSecret, time.Minute, time.Hour, store)

	tokens, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", tokens)
	}
	if !store.Has(tokens.RefreshToken) {
		t.Fatal("expected refresh token to be persisted")
	}

	userID, err := manager.Verify(tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1, got %s", userID)
	}
}

func TestManagerIssueRequiresUserID(t *testing.T) {
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemoryRefreshStore())

	if _, err := manager.Issue(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestManagerRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRefreshStore()
	manager := NewManager(testSecret, time.Minute, time.Hour, store)

	first, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	second, err := manager.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh tokens: %v", err)
	}

	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected refresh token to rotate")
	}
	if store.Has(first.RefreshToken) {
		t.Fatal("expected old refresh token to be invalidated")
	}

	if _, err := manager.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for rotated token, got %v", err)
	}
}

func TestManagerRefreshExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRefreshStore()
	manager := NewManager(testSecret, time.Minute, time.Hour, store)

	current := time.Now().UTC()
	manager.WithNowFunc(func() time.Time { return current })

	tokens, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	current = current.Add(2 * time.Hour)

	if _, err := manager.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
	if store.Has(tokens.RefreshToken) {
		t.Fatal("expected expired token to be cleared")
	}
}

func TestManagerRevokeEndsSession(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRefreshStore()
	manager := NewManager(testSecret, time.Minute, time.Hour, store)

	tokens, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	manager.Revoke(ctx, "user-1")

	if _, err := manager.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after revoke, got %v", err)
	}
}

func TestManagerVerifyRejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemoryRefreshStore())

	tokens, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	other := NewManager([]byte("a-different-secret"), time.Minute, time.Hour, NewInMemoryRefreshStore())
	if _, err := other.Verify(tokens.AccessToken); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for wrong secret, got %v", err)
	}

	if _, err := manager.Verify(tokens.AccessToken + "x"); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for tampered token, got %v", err)
	}
	if _, err := manager.Verify(""); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for empty token, got %v", err)
	}
}

func TestManagerVerifyRejectsExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(testSecret, time.Minute, time.Hour, NewInMemoryRefreshStore())

	issuedAt := time.Now().UTC().Add(-time.Hour)
	manager.WithNowFunc(func() time.Time { return issuedAt })

	tokens, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	manager.WithNowFunc(time.Now)
	if _, err := manager.Verify(tokens.AccessToken); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for expired token, got %v", err)
	}
}
