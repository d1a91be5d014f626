package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/atelier/internal/core/domain"
	"github.com/vietddude/atelier/internal/metrics"
	"github.com/vietddude/atelier/internal/provider"
)

// Dispatch is the outcome of a successful failover call.
type Dispatch struct {
	ImageURL string
	Provider string
	Attempts []Attempt
}

// FailoverManager rotates across an ordered list of interchangeable
// providers. The rotation index is sticky: a success pins it, so later
// calls keep using the provider that last worked and loop back to
// recovered ones naturally. Each provider call runs through its own
// circuit breaker under the retry policy.
//
// Breakers live in a registry owned by the manager, not in package state,
// so independent managers never cross-contaminate.
type FailoverManager struct {
	mu        sync.Mutex
	providers []provider.Provider
	breakers  map[string]*CircuitBreaker
	current   int

	retryCfg RetryConfig
	log      *slog.Logger
}

// NewFailoverManager wires one breaker per provider and starts rotation at
// the first provider.
func NewFailoverManager(providers []provider.Provider, retryCfg RetryConfig, breakerCfg BreakerConfig, log *slog.Logger) *FailoverManager {
	if log == nil {
		log = slog.Default()
	}

	m := &FailoverManager{
		providers: providers,
		breakers:  make(map[string]*CircuitBreaker, len(providers)),
		retryCfg:  retryCfg,
		log:       log,
	}

	for _, p := range providers {
		br := NewCircuitBreaker(p.Name(), breakerCfg)
		br.OnStateChange(func(name string, from, to BreakerState) {
			log.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		})
		m.breakers[p.Name()] = br
	}

	return m
}

// GenerateImage dispatches the prompt, trying providers in rotation for at
// most one full cycle. A provider exhausting its retries is not fatal; only
// exhausting every provider is, and the composite error keeps the last
// provider's message for diagnostics.
func (m *FailoverManager) GenerateImage(ctx context.Context, prompt string) (*Dispatch, error) {
	m.mu.Lock()
	start := m.current
	n := len(m.providers)
	m.mu.Unlock()

	if n == 0 {
		return nil, domain.NewServiceUnavailable("no providers configured")
	}

	var lastErr *domain.GenerationError

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		p := m.providers[idx]
		br := m.breakers[p.Name()]

		res := ExecuteWithRetry(ctx, func(ctx context.Context) (any, error) {
			return br.Execute(ctx, func(ctx context.Context) (any, error) {
				// Instrumented here so breaker rejections never count
				// as provider calls and every retry attempt is timed.
				metrics.ProviderCallsTotal.WithLabelValues(p.Name()).Inc()
				callStart := time.Now()
				url, err := p.GenerateImage(ctx, prompt)
				if err != nil {
					return nil, err
				}
				metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(callStart).Seconds())
				return url, nil
			})
		}, p.Name(), m.retryCfg)

		if res.Success {
			m.mu.Lock()
			m.current = idx
			m.mu.Unlock()

			url, _ := res.Value.(string)
			return &Dispatch{ImageURL: url, Provider: p.Name(), Attempts: res.Attempts}, nil
		}

		lastErr = res.Err
		metrics.ProviderErrorsTotal.WithLabelValues(p.Name(), string(res.Err.Type)).Inc()
		metrics.FailoverRotationsTotal.WithLabelValues(p.Name()).Inc()
		m.log.Warn("provider failed, rotating to next",
			"provider", p.Name(),
			"attempts", len(res.Attempts),
			"error", res.Err.Message,
		)

		m.mu.Lock()
		m.current = (idx + 1) % n
		m.mu.Unlock()

		if ctx.Err() != nil {
			// Caller abandoned the request; no point rotating further.
			break
		}
	}

	return nil, &domain.GenerationError{
		Type:    lastErr.Type,
		Message: fmt.Sprintf("all %d providers failed; last error: %s", n, lastErr.Message),
	}
}

// HealthStatus fans out status probes to every provider concurrently.
func (m *FailoverManager) HealthStatus(ctx context.Context) map[string]provider.Status {
	statuses := make(map[string]provider.Status, len(m.providers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range m.providers {
		wg.Add(1)
		go func(p provider.Provider) {
			defer wg.Done()
			s := p.Status(ctx)
			mu.Lock()
			statuses[p.Name()] = s
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return statuses
}

// BreakerStatuses returns a snapshot of every breaker, sorted by name.
func (m *FailoverManager) BreakerStatuses() []BreakerStatus {
	out := make([]BreakerStatus, 0, len(m.breakers))
	for _, br := range m.breakers {
		out = append(out, br.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetBreaker force-closes the named provider's breaker. It reports
// whether the provider exists.
func (m *FailoverManager) ResetBreaker(name string) bool {
	br, ok := m.breakers[name]
	if !ok {
		return false
	}
	br.Reset()
	m.log.Info("circuit breaker reset", "provider", name)
	return true
}

// CurrentProvider returns the name of the provider rotation points at.
func (m *FailoverManager) CurrentProvider() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.providers) == 0 {
		return ""
	}
	return m.providers[m.current].Name()
}
