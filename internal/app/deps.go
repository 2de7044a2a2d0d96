package app

import (
	"context"
	"fmt"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/event"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/metrics"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup releases collaborators with their own
// lifecycle (currently the event publisher).
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(), error) {
	baseUsers := repositories.NewPostgresUserRepository(pool)
	users := repositories.NewCachingUserRepository(baseUsers, cfg.ChannelCacheTTL)
	sessions := auth.NewManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, baseUsers)

	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
	}

	publisher, err := event.NewPublisher(cfg.NATSURL)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure event publisher: %w", err)
	}

	authLimiter := middleware.NewIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateLimit, 10*time.Minute)

	deps := handlers.Dependencies{
		Users:         users,
		Sessions:      sessions,
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Tweets:        repositories.NewPostgresTweetRepository(pool),
		Likes:         repositories.NewPostgresLikeRepository(pool),
		Playlists:     repositories.NewPostgresPlaylistRepository(pool),
		Subscriptions: repositories.NewSubscriptionRepository(repositories.NewPostgresSubscriptionRepository(pool), users),
		Storage:       store,
		Events:        publisher,
		Verifier:      sessions,
		AuthLimiter:   authLimiter,
		Metrics:       metrics.New(),
	}

	cleanup := func() {
		publisher.Close()
	}
	return deps, cleanup, nil
}
