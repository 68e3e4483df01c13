// Package readcache clears cached read-path responses after a sync, so
// subsequent portfolio reads are not served pre-sync data. The key scheme
// is owned by the read-path service; this package mirrors it.
package readcache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "portfolio"

	scanCount = 100
	delBatch  = 50
)

// Invalidator deletes cached entries by pattern. Invalidation is
// best-effort: a missed key means one stale read until its TTL, while a
// hard failure here would fail an otherwise successful sync.
type Invalidator struct {
	client *redis.Client
	logger *zap.Logger
}

func NewInvalidator(client *redis.Client, logger *zap.Logger) *Invalidator {
	return &Invalidator{
		client: client,
		logger: logger.With(zap.String("component", "readcache")),
	}
}

// Invalidate clears the wallet's cached entries and the user's cross-wallet
// summaries.
func (i *Invalidator) Invalidate(ctx context.Context, userID, walletID string) {
	patterns := []string{
		fmt.Sprintf("%s:%s:%s:*", keyPrefix, userID, walletID),
		fmt.Sprintf("%s:%s:summary:*", keyPrefix, userID),
	}

	deleted := 0
	for _, pattern := range patterns {
		n, err := i.deleteMatching(ctx, pattern)
		deleted += n
		if err != nil {
			i.logger.Warn("read cache invalidation incomplete",
				zap.String("pattern", pattern),
				zap.Error(err))
		}
	}
	if deleted > 0 {
		i.logger.Debug("invalidated read cache entries",
			zap.String("user_id", userID),
			zap.String("wallet_id", walletID),
			zap.Int("keys", deleted))
	}
}

func (i *Invalidator) deleteMatching(ctx context.Context, pattern string) (int, error) {
	iter := i.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	keys := make([]string, 0, delBatch)
	deleted := 0

	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		if err := i.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
		deleted += len(keys)
		keys = keys[:0]
		return nil
	}

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= delBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, flush()
}

// Nop satisfies the orchestrator's invalidation hook when Redis is not
// configured.
type Nop struct{}

func (Nop) Invalidate(context.Context, string, string) {}
