package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
)

func testProviderConfig() config.ProviderConfig {
	return config.ProviderConfig{
		Timeout:          time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
		MaxConcurrency:   2,
	}
}

func TestCaller_Success(t *testing.T) {
	c := NewCaller("test", testProviderConfig(), zap.NewNop())

	calls := 0
	err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	stats := c.Stats()
	if stats.Requests != 1 || stats.Failures != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if h := c.Health(); !h.Healthy {
		t.Fatalf("expected healthy provider, got: %s", h.Message)
	}
}

func TestCaller_RetriesServerErrors(t *testing.T) {
	c := NewCaller("test", testProviderConfig(), zap.NewNop())

	calls := 0
	err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPError{Status: 500}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCaller_RetriesRateLimit(t *testing.T) {
	c := NewCaller("test", testProviderConfig(), zap.NewNop())

	calls := 0
	err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &HTTPError{Status: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestCaller_ClientErrorsFailFast(t *testing.T) {
	c := NewCaller("test", testProviderConfig(), zap.NewNop())

	calls := 0
	err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return &HTTPError{Status: 400, Body: "bad address"}
	})
	if err == nil {
		t.Fatal("expected error for client failure")
	}
	if calls != 1 {
		t.Fatalf("expected no retries on 4xx, got %d attempts", calls)
	}
	if !apperrors.Is(err, apperrors.CategoryProviderTerminal) {
		t.Fatalf("expected terminal provider error, got: %v", err)
	}
}

func TestCaller_ExhaustedRetriesClassifiedTransient(t *testing.T) {
	c := NewCaller("test", testProviderConfig(), zap.NewNop())

	calls := 0
	err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return &HTTPError{Status: 503}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !apperrors.Is(err, apperrors.CategoryProviderFailure) {
		t.Fatalf("expected transient provider error, got: %v", err)
	}
}

func TestCaller_ServiceErrorPassesThroughUnchanged(t *testing.T) {
	c := NewCaller("test", testProviderConfig(), zap.NewNop())

	err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		return apperrors.ParseError(nil, "unexpected payload shape")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.Is(err, apperrors.CategoryParseError) {
		t.Fatalf("expected parse error category preserved, got: %v", err)
	}
	if code := apperrors.CodeOf(err); code != "PARSE_ERROR" {
		t.Fatalf("expected PARSE_ERROR code, got %s", code)
	}
}

func TestCaller_BreakerOpensAndFailsFast(t *testing.T) {
	c := NewCaller("test", testProviderConfig(), zap.NewNop())

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return &HTTPError{Status: 401}
	}

	// Threshold is 2 completed failures
	_ = c.Do(context.Background(), "op", fail)
	_ = c.Do(context.Background(), "op", fail)
	if calls != 2 {
		t.Fatalf("expected 2 upstream attempts, got %d", calls)
	}

	err := c.Do(context.Background(), "op", fail)
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
	if calls != 2 {
		t.Fatalf("open breaker must not invoke upstream, got %d attempts", calls)
	}
	if !apperrors.Is(err, apperrors.CategoryProviderTerminal) {
		t.Fatalf("expected terminal provider error, got: %v", err)
	}

	if h := c.Health(); h.Healthy {
		t.Fatal("expected unhealthy provider while breaker is open")
	}
}

func TestCaller_SemaphoreLimitsConcurrency(t *testing.T) {
	cfg := testProviderConfig()
	cfg.MaxConcurrency = 1
	c := NewCaller("test", cfg, zap.NewNop())

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Do(context.Background(), "op", func(ctx context.Context) error {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&maxInFlight)
					if cur <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("expected at most 1 in-flight call, observed %d", got)
	}
}

func TestCaller_ContextCancelledWhileWaiting(t *testing.T) {
	cfg := testProviderConfig()
	cfg.MaxConcurrency = 1
	c := NewCaller("test", cfg, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = c.Do(context.Background(), "op", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Do(ctx, "op", func(ctx context.Context) error { return nil })
	close(release)

	if err == nil {
		t.Fatal("expected error for cancelled wait")
	}
}

func TestTracker_RollingSuccessRate(t *testing.T) {
	tr := newTracker()

	for i := 0; i < 3; i++ {
		tr.Record(10*time.Millisecond, nil)
	}
	tr.Record(20*time.Millisecond, &HTTPError{Status: 500})

	stats := tr.Snapshot()
	if stats.Requests != 4 || stats.Failures != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.SuccessRate != 0.75 {
		t.Fatalf("expected success rate 0.75, got %f", stats.SuccessRate)
	}
	if stats.LastError == "" || stats.LastErrorAt == nil {
		t.Fatal("expected last error to be recorded")
	}
}

func TestTracker_RingEvictsOldOutcomes(t *testing.T) {
	tr := newTracker()

	// Fill the ring with failures, then overwrite with successes
	for i := 0; i < ringSize; i++ {
		tr.Record(time.Millisecond, &HTTPError{Status: 500})
	}
	for i := 0; i < ringSize; i++ {
		tr.Record(time.Millisecond, nil)
	}

	stats := tr.Snapshot()
	if stats.SuccessRate != 1.0 {
		t.Fatalf("expected success rate 1.0 after ring rollover, got %f", stats.SuccessRate)
	}
	if stats.Requests != 2*ringSize {
		t.Fatalf("lifetime counter should survive rollover, got %d", stats.Requests)
	}
}
