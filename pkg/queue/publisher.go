package queue

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
)

// Publisher writes envelopes to named queues. Safe for concurrent use; the
// underlying AMQP channel is not, so publishes serialize on a mutex.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]struct{}
	logger   *zap.Logger
}

func NewPublisher(conn *amqp.Connection, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return &Publisher{
		ch:       ch,
		declared: make(map[string]struct{}),
		logger:   logger.With(zap.String("component", "queue_publisher")),
	}, nil
}

// Publish sends one persistent envelope to the queue, declaring the queue
// on first use.
func (p *Publisher) Publish(ctx context.Context, queueName string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return apperrors.GeneralError(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.declared[queueName]; !ok {
		if err := declareQueue(p.ch, queueName); err != nil {
			return apperrors.GeneralError(err)
		}
		p.declared[queueName] = struct{}{}
	}

	err = p.ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.JobID,
			Timestamp:    env.EnqueuedAt,
			Body:         body,
		})
	if err != nil {
		return apperrors.GeneralError(err)
	}

	p.logger.Debug("published job",
		zap.String("queue", queueName),
		zap.String("job_id", env.JobID),
		zap.String("job_type", string(env.Type)))
	return nil
}

// Depth reports the queue's current ready-message count via a passive
// declare. Call only for queues this publisher has already declared; a
// passive declare on a missing queue faults the channel.
func (p *Publisher) Depth(queueName string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, err := p.ch.QueueInspect(queueName)
	if err != nil {
		return 0, apperrors.GeneralError(err)
	}
	return q.Messages, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
