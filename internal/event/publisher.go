// Package event publishes best-effort domain events over NATS. Publishing is
// fire-and-forget: the request path never fails because an event could not be
// delivered.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for the events the backend emits.
const (
	SubjectVideoPublished     = "clipstream.video.published"
	SubjectLikeToggled        = "clipstream.like.toggled"
	SubjectSubscriptionToggle = "clipstream.subscription.toggled"
)

// Publisher emits domain events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}

// Noop is the Publisher used when NATS is not configured.
type Noop struct{}

// Publish implements Publisher and does nothing.
func (Noop) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher and does nothing.
func (Noop) Close() {}

// NATSPublisher sends events to a NATS server.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewPublisher connects to the NATS server at url, or returns a Noop
// publisher when url is empty.
func NewPublisher(url string) (Publisher, error) {
	if url == "" {
		return Noop{}, nil
	}

	nc, err := nats.Connect(url, nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSPublisher{nc: nc}, nil
}

// Publish marshals the payload and sends it on the subject. Failures are
// logged, never surfaced to the request that triggered the event.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		slog.WarnContext(ctx, "event publish failed", "subject", subject, "error", err)
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	return nil
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() {
	_ = p.nc.Drain()
}
