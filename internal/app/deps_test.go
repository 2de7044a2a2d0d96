package app

import (
	"context"
	"testing"
	"time"

	"github.com/clipstream/backend/internal/config"
)

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 240 * time.Hour,
		AuthRateLimit:   10,
		AuthRateWindow:  time.Minute,
		ObjectStore: config.ObjectStoreConfig{
			Region: "us-east-1",
			Bucket: "clipstream-test",
		},
	}

	// A nil pool is fine here: repositories only touch it when serving
	// requests, and this test never issues one.
	deps, cleanup, err := buildDependencies(context.Background(), nil, cfg)
	if err != nil {
		t.Fatalf("build dependencies: %v", err)
	}
	defer cleanup()

	if deps.Users == nil || deps.Sessions == nil || deps.Videos == nil {
		t.Fatal("expected core collaborators to be wired")
	}
	if deps.Comments == nil || deps.Tweets == nil || deps.Likes == nil {
		t.Fatal("expected content collaborators to be wired")
	}
	if deps.Playlists == nil || deps.Subscriptions == nil {
		t.Fatal("expected playlist and subscription stores to be wired")
	}
	if deps.Storage == nil {
		t.Fatal("expected object storage to be wired")
	}
	if deps.Events == nil {
		t.Fatal("expected event publisher to be wired")
	}
	if deps.Verifier == nil {
		t.Fatal("expected token verifier to be wired")
	}
	if deps.AuthLimiter == nil {
		t.Fatal("expected auth rate limiter to be wired")
	}
	if deps.Metrics == nil {
		t.Fatal("expected metrics registry to be wired")
	}
}
