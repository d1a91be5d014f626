// Package orchestrator drives a render request through validation, the
// prompt cache and the provider failover chain, producing one response
// that reports every stage's outcome.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/atelier/internal/core/domain"
	"github.com/vietddude/atelier/internal/metrics"
	"github.com/vietddude/atelier/internal/promptcache"
	"github.com/vietddude/atelier/internal/provider"
	"github.com/vietddude/atelier/internal/routing"
	"github.com/vietddude/atelier/internal/validation"
)

// CacheServiceName is reported as ServiceUsed when a cached render is
// returned without dispatching to any provider.
const CacheServiceName = "cache"

// Response is the full outcome of one generation request. A failed cache
// write-back after a successful render is reported in CacheErr, never as a
// generation failure.
type Response struct {
	RequestID      string                  `json:"request_id"`
	Success        bool                    `json:"success"`
	ImageURL       string                  `json:"image_url,omitempty"`
	Err            *domain.GenerationError `json:"error,omitempty"`
	Validation     *validation.Report      `json:"validation,omitempty"`
	ServiceUsed    string                  `json:"service_used,omitempty"`
	GenerationTime time.Duration           `json:"-"`
	CacheHit       bool                    `json:"cache_hit"`
	CacheErr       string                  `json:"cache_error,omitempty"`

	// GenerationTimeMs mirrors GenerationTime for the wire; a Duration
	// marshals as nanoseconds, which is the wrong unit for this key.
	GenerationTimeMs int64 `json:"generation_time_ms"`
}

// Orchestrator wires the pipeline stages together. It owns no state of its
// own; every stage is injected so tests can swap storage and providers.
type Orchestrator struct {
	validator *validation.Validator
	cache     *promptcache.Cache
	builder   *promptcache.Builder
	failover  *routing.FailoverManager
	log       *slog.Logger
}

// New creates an orchestrator over the given stages.
func New(validator *validation.Validator, cache *promptcache.Cache, builder *promptcache.Builder, failover *routing.FailoverManager, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		validator: validator,
		cache:     cache,
		builder:   builder,
		failover:  failover,
		log:       log,
	}
}

// Generate runs the full pipeline for one parameter set:
// validate, consult the cache, build the prompt, dispatch through
// failover, write the result back. A cache hit with a stored image
// short-circuits before any provider is touched.
func (o *Orchestrator) Generate(ctx context.Context, params domain.ParameterSet) *Response {
	start := time.Now()
	resp := &Response{RequestID: uuid.NewString()}
	log := o.log.With("request_id", resp.RequestID)

	defer func() {
		resp.GenerationTime = time.Since(start)
		resp.GenerationTimeMs = resp.GenerationTime.Milliseconds()
		metrics.GenerationDuration.Observe(resp.GenerationTime.Seconds())
	}()

	report := o.validator.Validate(params)
	resp.Validation = &report
	if !report.IsValid {
		primary := report.PrimaryError()
		resp.Err = domain.NewValidationError(primary.Message)
		metrics.GenerationsTotal.WithLabelValues("validation_failed").Inc()
		log.Info("request rejected by validation",
			"field", primary.Field,
			"code", primary.Code,
		)
		return resp
	}

	hit, cacheErr := o.cache.GetCachedPrompt(ctx, params)
	if cacheErr != nil {
		// Cache trouble never blocks generation.
		log.Warn("cache lookup failed, generating fresh", "error", cacheErr)
	}
	if hit != nil && hit.ImageURL != "" {
		resp.Success = true
		resp.ImageURL = hit.ImageURL
		resp.CacheHit = true
		resp.ServiceUsed = CacheServiceName
		metrics.GenerationsTotal.WithLabelValues("cache_hit").Inc()
		log.Info("served from cache", "hash", hit.Hash, "usage_count", hit.UsageCount)
		return resp
	}

	// A hit without a stored image still saves the prompt build.
	var prompt string
	if hit != nil {
		prompt = hit.Prompt
	} else {
		prompt = o.builder.Build(params)
	}

	dispatch, err := o.failover.GenerateImage(ctx, prompt)
	if err != nil {
		genErr, _ := domain.AsGenerationError(err)
		if genErr == nil {
			genErr = domain.NewUnknown(err.Error())
		}
		resp.Err = genErr
		metrics.GenerationsTotal.WithLabelValues("failure").Inc()
		log.Error("generation failed", "error_type", string(genErr.Type), "error", genErr.Message)
		return resp
	}

	resp.Success = true
	resp.ImageURL = dispatch.ImageURL
	resp.ServiceUsed = dispatch.Provider
	metrics.GenerationsTotal.WithLabelValues("success").Inc()

	if _, err := o.cache.CachePrompt(ctx, params, prompt, dispatch.ImageURL); err != nil {
		// The render succeeded; report the write-back failure on its own.
		resp.CacheErr = err.Error()
		log.Warn("cache write-back failed", "error", err)
	}

	log.Info("generation complete",
		"provider", dispatch.Provider,
		"attempts", len(dispatch.Attempts),
		"duration", time.Since(start),
	)
	return resp
}

// ValidateOnly runs just the validation stage, for pre-flight checks from
// the editor UI.
func (o *Orchestrator) ValidateOnly(params domain.ParameterSet) validation.Report {
	return o.validator.Validate(params)
}

// HealthStatus reports per-provider health and breaker snapshots.
func (o *Orchestrator) HealthStatus(ctx context.Context) ([]routing.BreakerStatus, map[string]provider.Status) {
	return o.failover.BreakerStatuses(), o.failover.HealthStatus(ctx)
}

// ResetBreaker force-closes the named provider's breaker.
func (o *Orchestrator) ResetBreaker(name string) bool {
	return o.failover.ResetBreaker(name)
}

// CleanupCache removes stale or excess cache entries. maxAgeDays prunes by
// recency when positive; keepCount caps the table to the most used entries
// when positive. Returns total entries removed.
func (o *Orchestrator) CleanupCache(ctx context.Context, maxAgeDays, keepCount int) (int64, error) {
	var total int64
	if maxAgeDays > 0 {
		n, err := o.cache.CleanupOldEntries(ctx, maxAgeDays)
		if err != nil {
			return total, err
		}
		total += n
	}
	if keepCount > 0 {
		n, err := o.cache.CleanupLeastUsed(ctx, keepCount)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
