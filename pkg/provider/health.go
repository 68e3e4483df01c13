package provider

import (
	"context"
	"time"
)

// Health describes a provider's current ability to serve requests.
type Health struct {
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Prober is implemented by provider clients that can report their own
// availability.
type Prober interface {
	Name() string
	Health(ctx context.Context) Health
	Stats() Stats
}
