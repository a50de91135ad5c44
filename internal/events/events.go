// Package events publishes pipeline progress to Redis pub/sub so a gateway
// can forward live updates (SSE) without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChannelRecommendedProgress carries incremental and final pull updates.
const ChannelRecommendedProgress = "EVENT_RECOMMENDED_PROGRESS"

// ProgressEvent is the payload published after each query batch and on run
// finalization.
type ProgressEvent struct {
	RunID        int64  `json:"runId"`
	Status       string `json:"status"`
	TotalFetched int    `json:"totalFetched"`
	NewJobs      int    `json:"newJobs"`
	Duplicates   int    `json:"duplicates"`
	QueryErrors  int    `json:"queryErrors"`
	Matches      int    `json:"matches"`
}

// Publisher publishes progress events to Redis.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher returns a configured Publisher.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishProgress sends one event. Failures are reported to the caller, who
// treats publishing as non-fatal.
func (p *Publisher) PublishProgress(ctx context.Context, ev ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	if err := p.rdb.Publish(ctx, ChannelRecommendedProgress, payload).Err(); err != nil {
		return fmt.Errorf("publish progress event: %w", err)
	}
	return nil
}
