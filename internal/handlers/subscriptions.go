package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipstream/backend/internal/event"
)

// SubscriptionHandler implements channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Events        EventPublisher
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId} requests. The same
// transactional toggle semantics as likes apply; subscribing to yourself is
// rejected.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := currentUserID(ctx, w)
	if !ok {
		return
	}

	channelID := chi.URLParam(r, "channelId")
	if channelID == userID {
		respondJSON(ctx, w, http.StatusBadRequest, errorBody("cannot subscribe to your own channel"))
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, userID, channelID)
	if err != nil {
		respondStoreError(ctx, w, err, "toggle subscription")
		return
	}

	if h.Events != nil {
		_ = h.Events.Publish(ctx, event.SubjectSubscriptionToggle, map[string]any{
			"subscriberId": userID,
			"channelId":    channelID,
			"subscribed":   subscribed,
		})
	}

	message := "subscribed"
	if !subscribed {
		message = "subscription removed"
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"subscribed": subscribed, "message": message})
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId} requests.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscribers, total, err := h.Subscriptions.Subscribers(ctx, chi.URLParam(r, "channelId"))
	if err != nil {
		respondStoreError(ctx, w, err, "list subscribers")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"subscribers":      subscribers,
		"totalSubscribers": total,
	})
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId}
// requests.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channels, total, err := h.Subscriptions.SubscribedChannels(ctx, chi.URLParam(r, "subscriberId"))
	if err != nil {
		respondStoreError(ctx, w, err, "list subscribed channels")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"channels":      channels,
		"totalChannels": total,
	})
}
