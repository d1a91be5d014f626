package routing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vietddude/atelier/internal/core/domain"
	"github.com/vietddude/atelier/internal/metrics"
	"github.com/vietddude/atelier/internal/provider"
)

type stubProvider struct {
	name  string
	calls int
	fn    func(call int) (string, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.fn(s.calls)
}

func (s *stubProvider) Status(ctx context.Context) provider.Status {
	return provider.Status{Available: true}
}

func alwaysFail(name string) *stubProvider {
	return &stubProvider{name: name, fn: func(int) (string, error) {
		return "", domain.NewServiceUnavailable(name + " down")
	}}
}

func alwaysSucceed(name, url string) *stubProvider {
	return &stubProvider{name: name, fn: func(int) (string, error) {
		return url, nil
	}}
}

func fastFailoverRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, BackoffMultiplier: 2.0}
}

func TestFailoverFirstProviderSucceeds(t *testing.T) {
	p1 := alwaysSucceed("provider-1", "https://img.test/p1.png")
	p2 := alwaysSucceed("provider-2", "https://img.test/p2.png")
	m := NewFailoverManager([]provider.Provider{p1, p2}, fastFailoverRetry(), testBreakerConfig(), nil)

	d, err := m.GenerateImage(context.Background(), "a character portrait")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Provider != "provider-1" {
		t.Errorf("expected provider-1, got %s", d.Provider)
	}
	if d.ImageURL != "https://img.test/p1.png" {
		t.Errorf("unexpected image url %s", d.ImageURL)
	}
	if p2.calls != 0 {
		t.Errorf("provider-2 must not be called, got %d calls", p2.calls)
	}
}

func TestFailoverRotatesPastFailingProviders(t *testing.T) {
	cfg := fastFailoverRetry()
	p1 := alwaysFail("provider-1")
	p2 := alwaysFail("provider-2")
	p3 := alwaysSucceed("provider-3", "https://img.test/p3.png")
	m := NewFailoverManager([]provider.Provider{p1, p2, p3}, cfg, testBreakerConfig(), nil)

	d, err := m.GenerateImage(context.Background(), "a character portrait")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Provider != "provider-3" {
		t.Errorf("expected provider-3 after two rotations, got %s", d.Provider)
	}

	// Each failing provider gets its full retry budget before rotation.
	if p1.calls != cfg.MaxAttempts {
		t.Errorf("provider-1: expected %d calls, got %d", cfg.MaxAttempts, p1.calls)
	}
	if p2.calls != cfg.MaxAttempts {
		t.Errorf("provider-2: expected %d calls, got %d", cfg.MaxAttempts, p2.calls)
	}
}

func TestFailoverStickyIndex(t *testing.T) {
	p1 := alwaysFail("provider-1")
	p2 := alwaysSucceed("provider-2", "https://img.test/p2.png")
	m := NewFailoverManager([]provider.Provider{p1, p2}, fastFailoverRetry(), testBreakerConfig(), nil)

	if _, err := m.GenerateImage(context.Background(), "first"); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if got := m.CurrentProvider(); got != "provider-2" {
		t.Fatalf("expected rotation pinned to provider-2, got %s", got)
	}

	callsBefore := p1.calls
	d, err := m.GenerateImage(context.Background(), "second")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if d.Provider != "provider-2" {
		t.Errorf("expected sticky provider-2, got %s", d.Provider)
	}
	if p1.calls != callsBefore {
		t.Errorf("sticky index must skip the failed provider, provider-1 got %d extra calls", p1.calls-callsBefore)
	}
}

func TestFailoverAllProvidersFail(t *testing.T) {
	p1 := alwaysFail("provider-1")
	p2 := &stubProvider{name: "provider-2", fn: func(int) (string, error) {
		return "", domain.NewAuthenticationError("provider-2 key revoked")
	}}
	m := NewFailoverManager([]provider.Provider{p1, p2}, fastFailoverRetry(), testBreakerConfig(), nil)

	_, err := m.GenerateImage(context.Background(), "a character portrait")
	if err == nil {
		t.Fatal("expected composite failure")
	}

	genErr, ok := domain.AsGenerationError(err)
	if !ok {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if genErr.Type != domain.ErrAuthentication {
		t.Errorf("composite error must carry the last provider's type, got %s", genErr.Type)
	}
	if !strings.Contains(genErr.Message, "all 2 providers failed") {
		t.Errorf("composite message missing provider count: %s", genErr.Message)
	}
	if !strings.Contains(genErr.Message, "provider-2 key revoked") {
		t.Errorf("composite message missing last error: %s", genErr.Message)
	}
}

func TestFailoverSkipsOpenBreaker(t *testing.T) {
	cfg := fastFailoverRetry()
	bcfg := testBreakerConfig()
	bcfg.FailureThreshold = 2

	p1 := alwaysFail("provider-1")
	p2 := alwaysSucceed("provider-2", "https://img.test/p2.png")
	m := NewFailoverManager([]provider.Provider{p1, p2}, cfg, bcfg, nil)

	// Two retry attempts trip provider-1's breaker on the first call.
	if _, err := m.GenerateImage(context.Background(), "first"); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	statuses := m.BreakerStatuses()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 breaker statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "provider-1" || statuses[0].State != StateOpen {
		t.Errorf("expected provider-1 breaker open, got %s=%s", statuses[0].Name, statuses[0].StateName)
	}

	// Force rotation back to provider-1: the open breaker rejects without
	// touching the stub, and rotation moves on.
	m.mu.Lock()
	m.current = 0
	m.mu.Unlock()

	callsBefore := p1.calls
	counterBefore := testutil.ToFloat64(metrics.ProviderCallsTotal.WithLabelValues("provider-1"))

	d, err := m.GenerateImage(context.Background(), "second")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if d.Provider != "provider-2" {
		t.Errorf("expected failover to provider-2, got %s", d.Provider)
	}
	if p1.calls != callsBefore {
		t.Errorf("open breaker must reject without invoking provider-1, got %d extra calls", p1.calls-callsBefore)
	}

	// The rejection must not register as a provider call either.
	counterAfter := testutil.ToFloat64(metrics.ProviderCallsTotal.WithLabelValues("provider-1"))
	if counterAfter != counterBefore {
		t.Errorf("breaker rejection counted as a provider call: %v -> %v", counterBefore, counterAfter)
	}
}

func TestFailoverCountsEveryRetryAttempt(t *testing.T) {
	cfg := fastFailoverRetry()
	p1 := alwaysFail("metered-1")
	p2 := alwaysSucceed("metered-2", "https://img.test/p2.png")
	m := NewFailoverManager([]provider.Provider{p1, p2}, cfg, testBreakerConfig(), nil)

	before := testutil.ToFloat64(metrics.ProviderCallsTotal.WithLabelValues("metered-1"))
	if _, err := m.GenerateImage(context.Background(), "a prompt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := testutil.ToFloat64(metrics.ProviderCallsTotal.WithLabelValues("metered-1"))

	if got := after - before; got != float64(cfg.MaxAttempts) {
		t.Errorf("expected %d counted calls for a retried provider, got %v", cfg.MaxAttempts, got)
	}
}

func TestFailoverResetBreaker(t *testing.T) {
	bcfg := testBreakerConfig()
	bcfg.FailureThreshold = 2

	p1 := alwaysFail("provider-1")
	p2 := alwaysSucceed("provider-2", "https://img.test/p2.png")
	m := NewFailoverManager([]provider.Provider{p1, p2}, fastFailoverRetry(), bcfg, nil)

	m.GenerateImage(context.Background(), "trip provider-1")

	if !m.ResetBreaker("provider-1") {
		t.Fatal("expected reset to find provider-1")
	}
	if m.ResetBreaker("provider-9") {
		t.Error("reset must report unknown providers")
	}

	statuses := m.BreakerStatuses()
	if statuses[0].State != StateClosed {
		t.Errorf("expected provider-1 breaker closed after reset, got %s", statuses[0].StateName)
	}
}

func TestFailoverHealthStatus(t *testing.T) {
	p1 := alwaysSucceed("provider-1", "u1")
	p2 := alwaysSucceed("provider-2", "u2")
	m := NewFailoverManager([]provider.Provider{p1, p2}, fastFailoverRetry(), testBreakerConfig(), nil)

	statuses := m.HealthStatus(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, name := range []string{"provider-1", "provider-2"} {
		s, ok := statuses[name]
		if !ok {
			t.Errorf("missing status for %s", name)
			continue
		}
		if !s.Available {
			t.Errorf("%s should report available", name)
		}
	}
}

func TestFailoverNoProviders(t *testing.T) {
	m := NewFailoverManager(nil, fastFailoverRetry(), testBreakerConfig(), nil)
	_, err := m.GenerateImage(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error with no providers")
	}
}
