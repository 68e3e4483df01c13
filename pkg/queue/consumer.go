package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alitto/pond/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/internal/metrics"
	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
)

// ConsumerConfig sizes one queue's worker pool.
type ConsumerConfig struct {
	Queue       string
	Concurrency int
	// RatePerSecond paces job starts on top of the concurrency cap.
	// Zero disables pacing.
	RatePerSecond int
}

// Consumer drains one queue into a bounded worker pool. Deliveries are
// acked manually after the handler returns, so a worker crash mid-job
// hands the message back to the broker.
type Consumer struct {
	ch       *amqp.Channel
	cfg      ConsumerConfig
	handlers Handlers
	pool     pond.Pool
	limiter  ratelimit.Limiter
	logger   *zap.Logger
}

func NewConsumer(conn *amqp.Connection, cfg ConsumerConfig, handlers Handlers, logger *zap.Logger) (*Consumer, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	if err := declareQueue(ch, cfg.Queue); err != nil {
		return nil, apperrors.GeneralError(err)
	}
	// Prefetch matches the pool so the broker never hands this worker more
	// than it can run.
	if err := ch.Qos(cfg.Concurrency, 0, false); err != nil {
		return nil, apperrors.GeneralError(err)
	}

	c := &Consumer{
		ch:       ch,
		cfg:      cfg,
		handlers: handlers,
		pool:     pond.NewPool(cfg.Concurrency, pond.WithQueueSize(cfg.Concurrency)),
		logger:   logger.With(zap.String("queue", cfg.Queue)),
	}
	if cfg.RatePerSecond > 0 {
		c.limiter = ratelimit.New(cfg.RatePerSecond)
	}
	return c, nil
}

// Start consumes until ctx is canceled or the delivery channel closes.
// A closed channel means the connection died; the caller decides whether
// to reconnect or exit.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx,
		c.cfg.Queue,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return apperrors.GeneralError(err)
	}

	c.logger.Info("Consuming queue",
		zap.Int("concurrency", c.cfg.Concurrency),
		zap.Int("rate_per_second", c.cfg.RatePerSecond))

	for {
		select {
		case <-ctx.Done():
			c.pool.StopAndWait()
			return nil
		case d, ok := <-deliveries:
			if !ok {
				c.pool.StopAndWait()
				return fmt.Errorf("delivery channel for queue %s closed", c.cfg.Queue)
			}
			if c.limiter != nil {
				c.limiter.Take()
			}
			c.pool.Submit(func() {
				c.process(ctx, d)
			})
		}
	}
}

// process decodes, dispatches and settles one delivery.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		metrics.QueueMessages.WithLabelValues(c.cfg.Queue, "dropped").Inc()
		c.logger.Warn("dropping malformed queue message", zap.Error(err))
		_ = d.Ack(false)
		return
	}

	handler, ok := c.handlers[env.Type]
	if !ok {
		metrics.QueueMessages.WithLabelValues(c.cfg.Queue, "dropped").Inc()
		c.logger.Warn("dropping job with no registered handler",
			zap.String("job_id", env.JobID),
			zap.String("job_type", string(env.Type)))
		_ = d.Ack(false)
		return
	}

	if err := handler(ctx, env); err != nil {
		c.settleFailure(d, env, err)
		return
	}
	metrics.QueueMessages.WithLabelValues(c.cfg.Queue, "acked").Inc()
	_ = d.Ack(false)
}

// settleFailure nacks a failed delivery. A job gets one redelivery, and
// only when the failure class could pass on a second attempt; anything
// else would loop a poison message through the broker.
func (c *Consumer) settleFailure(d amqp.Delivery, env Envelope, err error) {
	requeue := !d.Redelivered && !terminalJobError(err)
	if requeue {
		metrics.QueueMessages.WithLabelValues(c.cfg.Queue, "requeued").Inc()
		c.logger.Warn("job failed, requeued for one more attempt",
			zap.String("job_id", env.JobID),
			zap.String("job_type", string(env.Type)),
			zap.Error(err))
	} else {
		metrics.QueueMessages.WithLabelValues(c.cfg.Queue, "failed").Inc()
		c.logger.Error("job failed permanently",
			zap.String("job_id", env.JobID),
			zap.String("job_type", string(env.Type)),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err))
	}
	_ = d.Nack(false, requeue)
}

// terminalJobError reports failure classes a redelivery cannot fix.
func terminalJobError(err error) bool {
	return apperrors.Is(err, apperrors.CategoryDataError) ||
		apperrors.Is(err, apperrors.CategoryParseError) ||
		apperrors.Is(err, apperrors.CategoryResourceNotFound)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
