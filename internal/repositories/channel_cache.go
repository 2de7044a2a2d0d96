package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/clipstream/backend/internal/models"
)

type profileKey struct {
	username string
	viewerID string
}

type profileEntry struct {
	profile models.ChannelProfile
	expires time.Time
}

// CachingUserRepository wraps a PostgresUserRepository with a TTL-based
// in-memory cache for channel profile lookups, the one query that fans out
// over the subscriptions table on every channel page view. All other user
// operations pass straight through. Profile mutations and subscription
// toggles invalidate affected entries; only writes from outside the process
// can be served stale, bounded by the TTL.
type CachingUserRepository struct {
	*PostgresUserRepository
	ttl time.Duration

	mu       sync.RWMutex
	profiles map[profileKey]profileEntry
}

// NewCachingUserRepository returns a user repository that caches channel
// profiles for the provided TTL.
func NewCachingUserRepository(base *PostgresUserRepository, ttl time.Duration) *CachingUserRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachingUserRepository{
		PostgresUserRepository: base,
		ttl:                    ttl,
		profiles:               make(map[profileKey]profileEntry),
	}
}

// ChannelProfile returns a cached profile when available, otherwise it
// delegates to the underlying repository and stores the result.
func (r *CachingUserRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	key := profileKey{username: username, viewerID: viewerID}
	now := time.Now()

	r.mu.RLock()
	entry, ok := r.profiles[key]
	r.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.profile, nil
	}

	profile, err := r.PostgresUserRepository.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		return models.ChannelProfile{}, err
	}

	r.mu.Lock()
	r.profiles[key] = profileEntry{profile: profile, expires: now.Add(r.ttl)}
	r.mu.Unlock()

	return profile, nil
}

// UpdateAvatar refreshes the stored avatar and drops any cached profiles for
// the affected user so the next channel view reflects the change.
func (r *CachingUserRepository) UpdateAvatar(ctx context.Context, userID, url string) (models.User, error) {
	user, err := r.PostgresUserRepository.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return models.User{}, err
	}
	r.invalidate(user.Username)
	return user, nil
}

// UpdateCoverImage refreshes the stored cover image and drops any cached
// profiles for the affected user.
func (r *CachingUserRepository) UpdateCoverImage(ctx context.Context, userID, url string) (models.User, error) {
	user, err := r.PostgresUserRepository.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		return models.User{}, err
	}
	r.invalidate(user.Username)
	return user, nil
}

// UpdateAccount refreshes account details and drops any cached profiles for
// the affected user.
func (r *CachingUserRepository) UpdateAccount(ctx context.Context, userID, fullName, email string) (models.User, error) {
	user, err := r.PostgresUserRepository.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		return models.User{}, err
	}
	r.invalidate(user.Username)
	return user, nil
}

func (r *CachingUserRepository) invalidate(username string) {
	r.mu.Lock()
	for key := range r.profiles {
		if key.username == username {
			delete(r.profiles, key)
		}
	}
	r.mu.Unlock()
}

// InvalidateChannel drops cached profiles belonging to the given channel by
// user ID. Subscription toggles go through here so a viewer who subscribes
// and reloads sees isSubscribed and the count change immediately.
func (r *CachingUserRepository) InvalidateChannel(channelID string) {
	r.mu.Lock()
	for key, entry := range r.profiles {
		if entry.profile.ID == channelID {
			delete(r.profiles, key)
		}
	}
	r.mu.Unlock()
}

// SubscriptionRepository is a PostgresSubscriptionRepository whose toggles
// also drop the affected channel's cached profiles.
type SubscriptionRepository struct {
	*PostgresSubscriptionRepository
	cache *CachingUserRepository
}

// NewSubscriptionRepository wires subscription toggling to profile cache
// invalidation.
func NewSubscriptionRepository(base *PostgresSubscriptionRepository, cache *CachingUserRepository) *SubscriptionRepository {
	return &SubscriptionRepository{PostgresSubscriptionRepository: base, cache: cache}
}

// Toggle flips the subscription and invalidates the channel's cached
// profiles on success.
func (r *SubscriptionRepository) Toggle(ctx context.Context, subscriberID, channelID string) (bool, error) {
	subscribed, err := r.PostgresSubscriptionRepository.Toggle(ctx, subscriberID, channelID)
	if err != nil {
		return false, err
	}
	r.cache.InvalidateChannel(channelID)
	return subscribed, nil
}
