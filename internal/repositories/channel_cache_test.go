package repositories

import (
	"context"
	"testing"
	"time"
)

func TestCachingUserRepository_ServesCachedProfileWithinTTL(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	base := NewPostgresUserRepository(testPool)
	cached := NewCachingUserRepository(base, time.Hour)

	channel := createTestUser(t, base, "channel")
	viewer := createTestUser(t, base, "viewer")

	profile, err := cached.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("load channel profile: %v", err)
	}
	if profile.SubscribersCount != 0 {
		t.Fatalf("expected 0 subscribers, got %d", profile.SubscribersCount)
	}

	// A write that bypasses the repository wiring is invisible until the
	// entry expires.
	if _, err := testPool.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id) VALUES ('sub-1', $1, $2)
    `, viewer.ID, channel.ID); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}

	profile, err = cached.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("reload channel profile: %v", err)
	}
	if profile.SubscribersCount != 0 {
		t.Fatalf("expected cached count 0, got %d", profile.SubscribersCount)
	}

	fresh, err := base.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("load profile from base: %v", err)
	}
	if fresh.SubscribersCount != 1 {
		t.Fatalf("expected base count 1, got %d", fresh.SubscribersCount)
	}
}

func TestSubscriptionToggleInvalidatesCachedProfile(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	base := NewPostgresUserRepository(testPool)
	cached := NewCachingUserRepository(base, time.Hour)
	subs := NewSubscriptionRepository(NewPostgresSubscriptionRepository(testPool), cached)

	channel := createTestUser(t, base, "channel")
	viewer := createTestUser(t, base, "viewer")

	profile, err := cached.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if profile.IsSubscribed || profile.SubscribersCount != 0 {
		t.Fatalf("unexpected initial profile: %+v", profile)
	}

	if _, err := subs.Toggle(ctx, viewer.ID, channel.ID); err != nil {
		t.Fatalf("toggle subscription: %v", err)
	}

	// The reload happens well within the TTL; the toggle must have dropped
	// the cached entry.
	profile, err = cached.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("reload channel profile: %v", err)
	}
	if !profile.IsSubscribed || profile.SubscribersCount != 1 {
		t.Fatalf("expected fresh profile after toggle, got %+v", profile)
	}

	if _, err := subs.Toggle(ctx, viewer.ID, channel.ID); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	profile, err = cached.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("reload after unsubscribe: %v", err)
	}
	if profile.IsSubscribed || profile.SubscribersCount != 0 {
		t.Fatalf("expected fresh profile after unsubscribe, got %+v", profile)
	}
}

func TestCachingUserRepository_ExpiresAndInvalidates(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	base := NewPostgresUserRepository(testPool)
	cached := NewCachingUserRepository(base, 20*time.Millisecond)

	channel := createTestUser(t, base, "channel")
	viewer := createTestUser(t, base, "viewer")

	if _, err := cached.ChannelProfile(ctx, "channel", viewer.ID); err != nil {
		t.Fatalf("load channel profile: %v", err)
	}

	if _, err := testPool.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id) VALUES ('sub-1', $1, $2)
    `, viewer.ID, channel.ID); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	profile, err := cached.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("reload channel profile: %v", err)
	}
	if profile.SubscribersCount != 1 {
		t.Fatalf("expected expired entry to be refetched, got count %d", profile.SubscribersCount)
	}

	// Profile mutations drop cached entries immediately.
	longLived := NewCachingUserRepository(base, time.Hour)
	if _, err := longLived.ChannelProfile(ctx, "channel", viewer.ID); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := longLived.UpdateAvatar(ctx, channel.ID, "https://media.example.com/new-avatar.png"); err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	profile, err = longLived.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("reload after avatar change: %v", err)
	}
	if profile.Avatar != "https://media.example.com/new-avatar.png" {
		t.Fatalf("expected refreshed avatar, got %q", profile.Avatar)
	}
}
