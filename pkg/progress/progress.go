// Package progress publishes sync lifecycle events to the per-wallet
// notification channel consumed by the realtime delivery layer.
//
// Publishing is best-effort by contract: a lost event degrades the UI for
// one poll cycle, while a blocked publish would stall the sync job. Every
// failure path here logs and returns nothing.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// State is the lifecycle phase carried by a progress event.
type State string

const (
	StateQueued              State = "queued"
	StateSyncing             State = "syncing"
	StateSyncingAssets       State = "syncing_assets"
	StateSyncingTransactions State = "syncing_transactions"
	StateSyncingNFTs         State = "syncing_nfts"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
)

// Event is one progress notification. DataTypes and ProcessingTimeMs are
// only populated on terminal events.
type Event struct {
	JobID            string    `json:"jobId"`
	WalletID         string    `json:"walletId"`
	State            State     `json:"state"`
	Progress         int       `json:"progress"`
	Message          string    `json:"message"`
	DataTypes        []string  `json:"dataTypes,omitempty"`
	ProcessingTimeMs int64     `json:"processingTimeMs,omitempty"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Publisher delivers progress events for a user's wallet. Implementations
// must never block the caller on delivery problems.
type Publisher interface {
	Publish(ctx context.Context, userID string, ev Event)
}

// Channel returns the pub/sub channel for a (user, wallet) pair. One
// stream per pair keeps subscriber filtering trivial.
func Channel(userID, walletID string) string {
	return fmt.Sprintf("wallet-sync:%s:%s", userID, walletID)
}

// RedisPublisher sends events over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: logger.With(zap.String("component", "progress")),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("failed to marshal progress event",
			zap.String("job_id", ev.JobID),
			zap.Error(err))
		return
	}

	channel := Channel(userID, ev.WalletID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish progress event",
			zap.String("channel", channel),
			zap.String("job_id", ev.JobID),
			zap.Error(err))
	}
}

// NopPublisher drops every event. Used in tests and when Redis is not
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) {}
