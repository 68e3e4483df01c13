package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
)

// JobType routes an envelope to its handler.
type JobType string

const (
	JobSyncWallet         JobType = "SYNC_WALLET"
	JobSyncWalletFull     JobType = "SYNC_WALLET_FULL"
	JobSyncTransactions   JobType = "SYNC_TRANSACTIONS"
	JobCalculatePortfolio JobType = "CALCULATE_PORTFOLIO"
	JobCreateSnapshot     JobType = "CREATE_SNAPSHOT"
)

// Envelope is the wire format on both queues. Payload stays raw until the
// handler decodes it against its own payload type.
type Envelope struct {
	JobID      string          `json:"jobId"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// SyncPayload drives SYNC_WALLET, SYNC_WALLET_FULL and SYNC_TRANSACTIONS.
// DataTypes narrows a sync to a subset of stages; empty means all.
type SyncPayload struct {
	UserID    string   `json:"userId" validate:"required"`
	WalletID  string   `json:"walletId" validate:"required"`
	DataTypes []string `json:"dataTypes,omitempty" validate:"omitempty,dive,required"`
}

// AnalyticsPayload drives CALCULATE_PORTFOLIO and CREATE_SNAPSHOT.
type AnalyticsPayload struct {
	UserID   string `json:"userId" validate:"required"`
	WalletID string `json:"walletId" validate:"required"`
}

// Handler processes one decoded job. A returned error is the signal that
// the delivery should not be acked.
type Handler func(ctx context.Context, env Envelope) error

// Handlers maps job types to their handlers for one queue.
type Handlers map[JobType]Handler

var validate = validator.New()

// NewEnvelope wraps a payload for publishing, assigning the job id the
// caller hands back to API clients.
func NewEnvelope(jobType JobType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, apperrors.GeneralError(err)
	}
	return Envelope{
		JobID:      uuid.NewString(),
		Type:       jobType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// DecodePayload unmarshals and validates the envelope's payload into T.
// Both failure modes are terminal for the delivery: a payload that does
// not parse today will not parse on redelivery either.
func DecodePayload[T any](env Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return payload, apperrors.ParseError(err, "job payload does not match the envelope type")
	}
	if err := validate.Struct(payload); err != nil {
		return payload, apperrors.BadRequestError(err, "job payload failed validation")
	}
	return payload, nil
}
