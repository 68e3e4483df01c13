package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/breaker"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/retry"
)

// Caller runs provider requests behind a shared admission pipeline: a FIFO
// concurrency gate, a circuit breaker, a per-attempt timeout and retries
// with exponential backoff. Every provider client wraps its HTTP calls in
// one of these.
type Caller struct {
	name    string
	timeout time.Duration
	retry   retry.Config
	brk     *breaker.Breaker
	sem     chan struct{}
	stats   *tracker
	logger  *zap.Logger
}

// NewCaller builds the call pipeline for one provider from its config.
func NewCaller(name string, cfg config.ProviderConfig, logger *zap.Logger) *Caller {
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Caller{
		name:    name,
		timeout: timeout,
		retry: retry.Config{
			MaxRetries:    cfg.MaxRetries,
			InitialDelay:  cfg.RetryBaseDelay,
			MaxDelay:      cfg.RetryMaxDelay,
			Multiplier:    2.0,
			JitterEnabled: true,
		},
		brk:    breaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown),
		sem:    make(chan struct{}, concurrency),
		stats:  newTracker(),
		logger: logger.With(zap.String("provider", name)),
	}
}

// Do executes fn through the admission pipeline. The context passed to fn
// carries the per-attempt timeout. Errors come back classified: transient
// failures as provider errors, upstream rejections as terminal ones.
func (c *Caller) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s slot: %w", c.name, ctx.Err())
	}
	defer func() { <-c.sem }()

	if !c.brk.Allow() {
		metrics.ProviderRequests.WithLabelValues(c.name, operation, "rejected").Inc()
		return apperrors.ProviderTerminalError(nil, fmt.Sprintf("%s circuit open", c.name))
	}

	start := time.Now()
	err := retry.WithBackoff(ctx, c.retry, c.logger, fmt.Sprintf("%s.%s", c.name, operation), func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		attemptStart := time.Now()
		attemptErr := fn(attemptCtx)
		metrics.ProviderLatency.WithLabelValues(c.name, operation).Observe(time.Since(attemptStart).Seconds())

		if attemptErr == nil {
			return nil
		}
		if IsRetryable(attemptErr) {
			return attemptErr
		}
		return retry.Permanent(attemptErr)
	})

	c.stats.Record(time.Since(start), err)
	c.observe(operation, err)
	return c.classify(operation, err)
}

func (c *Caller) observe(operation string, err error) {
	if err != nil {
		c.brk.Failure()
		metrics.ProviderRequests.WithLabelValues(c.name, operation, "error").Inc()
	} else {
		c.brk.Success()
		metrics.ProviderRequests.WithLabelValues(c.name, operation, "ok").Inc()
	}
	metrics.BreakerState.WithLabelValues(c.name).Set(float64(c.brk.State()))
}

func (c *Caller) classify(operation string, err error) error {
	if err == nil {
		return nil
	}

	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		return err
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= 400 && httpErr.Status < 500 && httpErr.Status != http.StatusTooManyRequests {
			return apperrors.ProviderTerminalError(err, fmt.Sprintf("%s rejected %s request", c.name, operation))
		}
	}
	return apperrors.ProviderError(err, fmt.Sprintf("%s %s failed", c.name, operation))
}

// Name returns the provider name.
func (c *Caller) Name() string { return c.name }

// Health derives availability from the breaker state and recent success rate.
func (c *Caller) Health() Health {
	now := time.Now().UTC()
	switch c.brk.State() {
	case breaker.Open:
		return Health{Healthy: false, Message: "circuit open: recent requests failing", Timestamp: now}
	case breaker.HalfOpen:
		return Health{Healthy: false, Message: "recovering: probing provider", Timestamp: now}
	}

	stats := c.stats.Snapshot()
	if stats.Requests > 0 && stats.SuccessRate < 0.5 {
		return Health{
			Healthy:   false,
			Message:   fmt.Sprintf("degraded: success rate %.0f%%", stats.SuccessRate*100),
			Timestamp: now,
		}
	}
	return Health{Healthy: true, Message: "ok", Timestamp: now}
}

// Stats returns a snapshot of recent call activity.
func (c *Caller) Stats() Stats {
	return c.stats.Snapshot()
}
