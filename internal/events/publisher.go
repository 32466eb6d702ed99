// Package events publishes project status changes to Redis pub/sub for
// dashboard consumers and keeps a short-lived dedup index of gateway
// callback references. The relational store stays the source of truth;
// Redis is a fast path only.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusChannelPrefix = "mkt:events:"    // Pub/Sub channel per project: mkt:events:{project_id}
	referenceKeyPrefix  = "mkt:payref:"    // Seen gateway references: mkt:payref:{reference}
	referenceTTL        = 7 * 24 * time.Hour
)

// StatusEvent is the payload published on every project status change.
type StatusEvent struct {
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishStatus emits a status event. Publishing is best-effort: a Redis
// outage must never fail the transition that triggered it, so the error is
// returned for logging only.
func (p *Publisher) PublishStatus(ctx context.Context, ev StatusEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	return p.client.Publish(ctx, p.statusChannel(ev.ProjectID), data).Err()
}

// SeenReference records a gateway callback reference and reports whether it
// had been seen before. The DB unique constraint remains authoritative; this
// only short-circuits obvious duplicate webhook deliveries.
func (p *Publisher) SeenReference(ctx context.Context, reference string) (bool, error) {
	if p == nil || p.client == nil || reference == "" {
		return false, nil
	}

	set, err := p.client.SetNX(ctx, p.referenceKey(reference), "1", referenceTTL).Result()
	if err != nil {
		return false, fmt.Errorf("record reference: %w", err)
	}
	return !set, nil
}

func (p *Publisher) statusChannel(projectID string) string {
	return fmt.Sprintf("%s%s", statusChannelPrefix, projectID)
}

func (p *Publisher) referenceKey(reference string) string {
	return fmt.Sprintf("%s%s", referenceKeyPrefix, reference)
}
