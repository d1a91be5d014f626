// Package routing handles provider retry, circuit breaking, and failover.
//
// This package contains:
//   - ExecuteWithRetry: bounded attempts with exponential backoff
//   - CircuitBreaker: per-provider CLOSED/OPEN/HALF_OPEN state machine
//   - FailoverManager: sticky rotation across interchangeable providers
package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/atelier/internal/core/domain"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration // caps the whole call including backoff; 0 = no cap
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       4,
	BaseDelay:         1 * time.Second,
	BackoffMultiplier: 2.0,
}

// Operation is any asynchronous unit of work the retry manager can drive.
// It has no knowledge of what it wraps.
type Operation func(ctx context.Context) (any, error)

// Attempt records one try for diagnostics and test assertions. Delay is the
// backoff waited before the attempt ran; attempt 1 always has Delay 0.
type Attempt struct {
	Number int
	Delay  time.Duration
	Err    *domain.GenerationError
	At     time.Time
}

// RetryResult carries the outcome plus the full attempt history, which is
// returned regardless of how the call ended.
type RetryResult struct {
	Success  bool
	Value    any
	Err      *domain.GenerationError
	Attempts []Attempt
}

// ExecuteWithRetry runs op under the given policy. The first attempt runs
// immediately; each retry waits base*multiplier^(n-1), raised to the
// error's RetryAfter hint when that is larger. A non-retryable error stops
// the loop no matter how many attempts remain. When cfg.Timeout is set the
// entire call, backoff included, races against it and loses with TIMEOUT.
func ExecuteWithRetry(ctx context.Context, op Operation, label string, cfg RetryConfig) RetryResult {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig.BaseDelay
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = DefaultRetryConfig.BackoffMultiplier
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var result RetryResult
	var delay time.Duration

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		value, err := op(ctx)

		record := Attempt{Number: attempt, Delay: delay, At: time.Now()}
		if err == nil {
			result.Attempts = append(result.Attempts, record)
			result.Success = true
			result.Value = value
			return result
		}

		genErr := domain.Classify(err)
		if ctx.Err() != nil {
			genErr = domain.NewTimeout(fmt.Sprintf("%s: call abandoned: %v", label, ctx.Err()))
		}
		record.Err = genErr
		result.Attempts = append(result.Attempts, record)
		result.Err = genErr

		if !genErr.Retryable || attempt == cfg.MaxAttempts {
			return result
		}

		delay = backoffDelay(attempt, cfg)
		if genErr.RetryAfter > delay {
			delay = genErr.RetryAfter
		}

		select {
		case <-ctx.Done():
			result.Err = domain.NewTimeout(fmt.Sprintf("%s: retry abandoned: %v", label, ctx.Err()))
			return result
		case <-time.After(delay):
		}
	}

	return result
}

func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	return time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1)))
}
