package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/atelier/internal/core/domain"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	StateClosed   BreakerState = iota // Normal operation; calls pass through.
	StateOpen                         // Failing; calls are rejected immediately.
	StateHalfOpen                     // Probing; limited calls test recovery.
)

// String returns a human-readable state name.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig defines circuit breaker thresholds and timing.
type BreakerConfig struct {
	FailureThreshold int           // failures in-window that trip the breaker open
	SuccessThreshold int           // half-open successes that close it again
	RecoveryTimeout  time.Duration // open time before the next probe
	MonitoringWindow time.Duration // sliding window failures count within
}

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	RecoveryTimeout:  30 * time.Second,
	MonitoringWindow: 60 * time.Second,
}

// BreakerStatus is a point-in-time snapshot for observability.
type BreakerStatus struct {
	Name             string       `json:"name"`
	State            BreakerState `json:"-"`
	StateName        string       `json:"state"`
	FailuresInWindow int          `json:"failures_in_window"`
	Successes        int          `json:"half_open_successes"`
	LastFailureAt    time.Time    `json:"last_failure_at"`
}

// CircuitBreaker guards one named provider. State moves only through the
// execute path under the breaker's own lock, so callers need no external
// synchronization. Stale failures are pruned lazily on the next evaluation;
// there is no background timer.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    []time.Time
	successes   int
	lastFailure time.Time

	// onStateChange fires outside the hot path for logging/metrics.
	onStateChange func(name string, from, to BreakerState)
}

// NewCircuitBreaker creates a closed breaker for the named provider.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig.SuccessThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig.RecoveryTimeout
	}
	if cfg.MonitoringWindow <= 0 {
		cfg.MonitoringWindow = DefaultBreakerConfig.MonitoringWindow
	}
	return &CircuitBreaker{name: name, cfg: cfg, state: StateClosed}
}

// OnStateChange registers a transition hook.
func (b *CircuitBreaker) OnStateChange(fn func(name string, from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Execute runs op through the breaker. While OPEN, op is never invoked and
// the returned error is a non-retryable SERVICE_UNAVAILABLE; retrying at
// this level cannot bypass an open breaker. Otherwise op's own error is
// passed through untouched.
func (b *CircuitBreaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	value, err := op(ctx)
	if err != nil {
		b.recordFailure()
		return nil, err
	}

	b.recordSuccess()
	return value, nil
}

func (b *CircuitBreaker) beforeCall() error {
	b.mu.Lock()

	b.pruneLocked(time.Now())

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.cfg.RecoveryTimeout {
			b.mu.Unlock()
			return &domain.GenerationError{
				Type:    domain.ErrServiceUnavailable,
				Message: fmt.Sprintf("circuit breaker open for provider %q", b.name),
			}
		}
		// Recovery window elapsed: this call becomes the probe.
		b.transitionLocked(StateHalfOpen)
	}

	b.mu.Unlock()
	return nil
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateHalfOpen {
		return
	}

	b.successes++
	if b.successes >= b.cfg.SuccessThreshold {
		b.failures = nil
		b.transitionLocked(StateClosed)
	}
}

func (b *CircuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.lastFailure = now

	switch b.state {
	case StateHalfOpen:
		// A single probe failure reopens and restarts the recovery timer.
		b.transitionLocked(StateOpen)
	case StateClosed:
		b.failures = append(b.failures, now)
		b.pruneLocked(now)
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	}
}

// pruneLocked drops failures that fell out of the monitoring window.
func (b *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringWindow)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

func (b *CircuitBreaker) transitionLocked(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to != StateHalfOpen {
		b.successes = 0
	}
	if b.onStateChange != nil {
		// Fired under the lock; hooks must not call back into the breaker.
		b.onStateChange(b.name, from, to)
	}
}

// Status returns the current snapshot.
func (b *CircuitBreaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(time.Now())
	return BreakerStatus{
		Name:             b.name,
		State:            b.state,
		StateName:        b.state.String(),
		FailuresInWindow: len(b.failures),
		Successes:        b.successes,
		LastFailureAt:    b.lastFailure,
	}
}

// Reset forces the breaker back to closed and clears its history. Admin
// override only.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = nil
	b.successes = 0
	b.transitionLocked(StateClosed)
}
