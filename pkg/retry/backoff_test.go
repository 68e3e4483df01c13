package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func fastConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		JitterEnabled: false,
	}
}

func TestWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zap.NewNop(), "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("WithBackoff() failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestWithBackoff_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastConfig(), zap.NewNop(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithBackoff() failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithBackoff_ExhaustsRetries(t *testing.T) {
	calls := 0
	transient := errors.New("transient")
	err := WithBackoff(context.Background(), fastConfig(), zap.NewNop(), "op", func() error {
		calls++
		return transient
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, transient) {
		t.Fatalf("expected wrapped transient error, got: %v", err)
	}
}

func TestWithBackoff_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	terminal := errors.New("bad request")
	err := WithBackoff(context.Background(), fastConfig(), zap.NewNop(), "op", func() error {
		calls++
		return Permanent(terminal)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call for permanent error, got %d", calls)
	}
	if !errors.Is(err, terminal) {
		t.Fatalf("expected terminal error, got: %v", err)
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		t.Fatal("returned error should be unwrapped from PermanentError")
	}
}

func TestWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, fastConfig(), zap.NewNop(), "op", func() error {
		return errors.New("should not matter")
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestPermanent_NilPassthrough(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
}

func TestCalculateBackoff_GrowsAndCaps(t *testing.T) {
	cfg := Config{
		InitialDelay:  time.Second,
		MaxDelay:      4 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: false,
	}

	if d := calculateBackoff(cfg, 1); d != time.Second {
		t.Errorf("attempt 1: expected 1s, got %v", d)
	}
	if d := calculateBackoff(cfg, 2); d != 2*time.Second {
		t.Errorf("attempt 2: expected 2s, got %v", d)
	}
	if d := calculateBackoff(cfg, 3); d != 4*time.Second {
		t.Errorf("attempt 3: expected 4s, got %v", d)
	}
	// Capped at MaxDelay from here on
	if d := calculateBackoff(cfg, 10); d != 4*time.Second {
		t.Errorf("attempt 10: expected cap 4s, got %v", d)
	}
}

func TestCalculateBackoff_JitterStaysInBounds(t *testing.T) {
	cfg := Config{
		InitialDelay:  time.Second,
		MaxDelay:      60 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: true,
	}

	for i := 0; i < 100; i++ {
		d := calculateBackoff(cfg, 1)
		if d < 850*time.Millisecond || d > 1150*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-15%% bounds", d)
		}
	}
}
