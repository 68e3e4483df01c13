// Package queue moves sync and analytics jobs over RabbitMQ. Queues are
// durable and messages persistent, so a broker or worker restart loses no
// accepted work; delivery is at-least-once and every handler downstream is
// idempotent.
package queue

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
)

// Connect dials the broker with bounded retries. Brokers routinely come up
// after the workers in compose setups, so the first attempts are expected
// to fail.
func Connect(cfg config.QueueConfig, logger *zap.Logger) (*amqp.Connection, error) {
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 5
	}
	delay := cfg.ConnectRetryDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			logger.Info("Connected to RabbitMQ")
			return conn, nil
		}
		lastErr = err
		if attempt < retries {
			logger.Warn("RabbitMQ connection failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", retries),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retries, lastErr)
}

// declareQueue makes the durable queue the workers and publishers agree on.
func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}
