package routing

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/atelier/internal/core/domain"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  20 * time.Millisecond,
		MonitoringWindow: time.Minute,
	}
}

func failingOp(ctx context.Context) (any, error) {
	return nil, domain.NewServiceUnavailable("backend down")
}

func succeedingOp(ctx context.Context) (any, error) {
	return "https://img.test/ok.png", nil
}

func tripBreaker(t *testing.T, b *CircuitBreaker) {
	t.Helper()
	for i := 0; i < testBreakerConfig().FailureThreshold; i++ {
		if _, err := b.Execute(context.Background(), failingOp); err == nil {
			t.Fatal("expected failure while tripping breaker")
		}
	}
	if got := b.Status().State; got != StateOpen {
		t.Fatalf("expected open after threshold failures, got %s", got)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker("provider-1", testBreakerConfig())

	for i := 0; i < 2; i++ {
		b.Execute(context.Background(), failingOp)
		if got := b.Status().State; got != StateClosed {
			t.Fatalf("breaker opened early after %d failures: %s", i+1, got)
		}
	}

	b.Execute(context.Background(), failingOp)
	if got := b.Status().State; got != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", got)
	}
}

func TestBreakerOpenRejectsWithoutCalling(t *testing.T) {
	b := NewCircuitBreaker("provider-1", testBreakerConfig())
	tripBreaker(t, b)

	calls := 0
	_, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return succeedingOp(ctx)
	})
	if err == nil {
		t.Fatal("expected rejection while open")
	}
	if calls != 0 {
		t.Errorf("open breaker must not invoke the operation, got %d calls", calls)
	}

	genErr, ok := domain.AsGenerationError(err)
	if !ok {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if genErr.Type != domain.ErrServiceUnavailable {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %s", genErr.Type)
	}
	if genErr.Retryable {
		t.Error("breaker rejection must not be retryable")
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cfg := testBreakerConfig()
	b := NewCircuitBreaker("provider-1", testBreakerConfig())

	var transitions []BreakerState
	b.OnStateChange(func(name string, from, to BreakerState) {
		transitions = append(transitions, to)
	})

	tripBreaker(t, b)
	time.Sleep(cfg.RecoveryTimeout + 5*time.Millisecond)

	// First probe moves to half-open; below the success threshold the
	// breaker stays there.
	if _, err := b.Execute(context.Background(), succeedingOp); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if got := b.Status().State; got != StateHalfOpen {
		t.Fatalf("expected half-open after first probe success, got %s", got)
	}

	if _, err := b.Execute(context.Background(), succeedingOp); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	st := b.Status()
	if st.State != StateClosed {
		t.Errorf("expected closed after %d probe successes, got %s", cfg.SuccessThreshold, st.State)
	}
	if st.FailuresInWindow != 0 {
		t.Errorf("closing must clear the failure window, got %d", st.FailuresInWindow)
	}

	want := []BreakerState{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := testBreakerConfig()
	b := NewCircuitBreaker("provider-1", cfg)

	tripBreaker(t, b)
	time.Sleep(cfg.RecoveryTimeout + 5*time.Millisecond)

	if _, err := b.Execute(context.Background(), failingOp); err == nil {
		t.Fatal("expected probe failure")
	}
	if got := b.Status().State; got != StateOpen {
		t.Errorf("half-open failure must reopen immediately, got %s", got)
	}

	// Reopening restarts the recovery clock.
	if _, err := b.Execute(context.Background(), succeedingOp); err == nil {
		t.Error("expected rejection right after reopening")
	}
}

func TestBreakerWindowPruning(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.MonitoringWindow = 30 * time.Millisecond
	b := NewCircuitBreaker("provider-1", cfg)

	b.Execute(context.Background(), failingOp)
	b.Execute(context.Background(), failingOp)
	time.Sleep(cfg.MonitoringWindow + 10*time.Millisecond)

	// The two stale failures have aged out, so two fresh ones stay under
	// the threshold.
	b.Execute(context.Background(), failingOp)
	b.Execute(context.Background(), failingOp)
	if got := b.Status().State; got != StateClosed {
		t.Errorf("stale failures must not count toward the threshold, got %s", got)
	}
}

func TestBreakerReset(t *testing.T) {
	b := NewCircuitBreaker("provider-1", testBreakerConfig())
	tripBreaker(t, b)

	b.Reset()
	st := b.Status()
	if st.State != StateClosed {
		t.Errorf("expected closed after reset, got %s", st.State)
	}
	if st.FailuresInWindow != 0 {
		t.Errorf("reset must clear failures, got %d", st.FailuresInWindow)
	}

	if _, err := b.Execute(context.Background(), succeedingOp); err != nil {
		t.Errorf("call after reset failed: %v", err)
	}
}

func TestBreakerSuccessInClosedKeepsWindow(t *testing.T) {
	b := NewCircuitBreaker("provider-1", testBreakerConfig())

	b.Execute(context.Background(), failingOp)
	b.Execute(context.Background(), succeedingOp)
	b.Execute(context.Background(), failingOp)
	b.Execute(context.Background(), failingOp)

	// Interleaved successes do not reset the sliding window count.
	if got := b.Status().State; got != StateOpen {
		t.Errorf("expected open once three failures land in the window, got %s", got)
	}
}
