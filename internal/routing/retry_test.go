package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/atelier/internal/core/domain"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		BaseDelay:         time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestExecuteWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	res := ExecuteWithRetry(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return "https://img.test/ok.png", nil
	}, "provider-1", fastRetryConfig())

	if !res.Success {
		t.Fatalf("expected success, got error: %v", res.Err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if got, _ := res.Value.(string); got != "https://img.test/ok.png" {
		t.Errorf("unexpected value %q", got)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("expected 1 attempt recorded, got %d", len(res.Attempts))
	}
	if res.Attempts[0].Delay != 0 {
		t.Errorf("first attempt must be immediate, got delay %v", res.Attempts[0].Delay)
	}
}

func TestExecuteWithRetryStopsOnNonRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		typ  domain.ErrorType
	}{
		{"authentication", domain.NewAuthenticationError("bad key"), domain.ErrAuthentication},
		{"invalid request", domain.NewInvalidRequest("bad payload"), domain.ErrInvalidRequest},
		{"unknown", errors.New("something strange"), domain.ErrUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			res := ExecuteWithRetry(context.Background(), func(ctx context.Context) (any, error) {
				calls++
				return nil, tc.err
			}, "provider-1", fastRetryConfig())

			if res.Success {
				t.Fatal("expected failure")
			}
			if calls != 1 {
				t.Errorf("non-retryable error must not retry, got %d calls", calls)
			}
			if res.Err.Type != tc.typ {
				t.Errorf("expected type %s, got %s", tc.typ, res.Err.Type)
			}
		})
	}
}

func TestExecuteWithRetryExhaustsRetryable(t *testing.T) {
	cfg := fastRetryConfig()
	calls := 0
	res := ExecuteWithRetry(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, domain.NewServiceUnavailable("down")
	}, "provider-1", cfg)

	if res.Success {
		t.Fatal("expected failure")
	}
	if calls != cfg.MaxAttempts {
		t.Errorf("expected %d calls, got %d", cfg.MaxAttempts, calls)
	}
	if len(res.Attempts) != cfg.MaxAttempts {
		t.Fatalf("expected %d attempts recorded, got %d", cfg.MaxAttempts, len(res.Attempts))
	}

	// Delays after the first attempt must grow strictly.
	for i := 2; i < len(res.Attempts); i++ {
		if res.Attempts[i].Delay <= res.Attempts[i-1].Delay {
			t.Errorf("attempt %d delay %v not greater than previous %v",
				res.Attempts[i].Number, res.Attempts[i].Delay, res.Attempts[i-1].Delay)
		}
	}
}

func TestExecuteWithRetryHonorsRetryAfter(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxAttempts = 2
	hint := 30 * time.Millisecond

	start := time.Now()
	res := ExecuteWithRetry(context.Background(), func(ctx context.Context) (any, error) {
		return nil, domain.NewRateLimited("slow down", hint)
	}, "provider-1", cfg)
	elapsed := time.Since(start)

	if res.Success {
		t.Fatal("expected failure")
	}
	if elapsed < hint {
		t.Errorf("rate limit hint ignored: elapsed %v < %v", elapsed, hint)
	}
	if res.Attempts[1].Delay < hint {
		t.Errorf("recorded delay %v below server hint %v", res.Attempts[1].Delay, hint)
	}
}

func TestExecuteWithRetryTimeout(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.BaseDelay = 50 * time.Millisecond

	res := ExecuteWithRetry(context.Background(), func(ctx context.Context) (any, error) {
		return nil, domain.NewServiceUnavailable("down")
	}, "provider-1", cfg)

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Type != domain.ErrTimeout {
		t.Errorf("expected TIMEOUT after deadline, got %s", res.Err.Type)
	}
	if len(res.Attempts) >= cfg.MaxAttempts {
		t.Errorf("deadline should have cut retries short, got %d attempts", len(res.Attempts))
	}
}

func TestExecuteWithRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := ExecuteWithRetry(ctx, func(ctx context.Context) (any, error) {
		calls++
		return nil, ctx.Err()
	}, "provider-1", fastRetryConfig())

	if res.Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("canceled context must not retry, got %d calls", calls)
	}
}

func TestBackoffDelayGrowth(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, BackoffMultiplier: 2.0}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := backoffDelay(i+1, cfg); got != w {
			t.Errorf("backoffDelay(%d) = %v, want %v", i+1, got, w)
		}
	}
}
