// Package promptcache canonicalizes parameter sets into stable hash keys
// and caches previously built prompts and their rendered results.
package promptcache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/atelier/internal/core/domain"
	"github.com/vietddude/atelier/internal/infra/storage"
	"github.com/vietddude/atelier/internal/metrics"
)

// Hit is a successful cache lookup.
type Hit struct {
	Hash       string
	Prompt     string
	ImageURL   string
	UsageCount int64
}

// Cache fronts a storage.PromptRepository with parameter hashing and usage
// accounting. It never decides when cleanup runs; an external scheduler
// calls the cleanup operations.
type Cache struct {
	repo storage.PromptRepository
	log  *slog.Logger
}

// New creates a prompt cache over the given repository.
func New(repo storage.PromptRepository, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{repo: repo, log: log}
}

// GetCachedPrompt looks up the prompt cached for params. A hit bumps the
// entry's usage count and last-used timestamp. A storage failure is
// returned as-is, never reported as a miss.
func (c *Cache) GetCachedPrompt(ctx context.Context, params domain.ParameterSet) (*Hit, error) {
	hash := params.Hash()

	rec, err := c.repo.Get(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Hit side effect: usage_count++ and last_used refresh.
	bumped, err := c.repo.Upsert(ctx, hash, rec.Prompt, "")
	if err != nil {
		// The lookup itself succeeded; surface the accounting failure but
		// keep the hit usable.
		c.log.Warn("failed to record cache hit", "hash", hash, "error", err)
		bumped = rec
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return &Hit{
		Hash:       hash,
		Prompt:     bumped.Prompt,
		ImageURL:   bumped.ImageURL,
		UsageCount: bumped.UsageCount,
	}, nil
}

// CachePrompt stores a built prompt and its rendered image URL under the
// parameter hash. Calling it again for the same params increments the usage
// count without creating a duplicate entry. Returns the hash key.
func (c *Cache) CachePrompt(ctx context.Context, params domain.ParameterSet, prompt, imageURL string) (string, error) {
	hash := params.Hash()
	if _, err := c.repo.Upsert(ctx, hash, prompt, imageURL); err != nil {
		return "", err
	}
	return hash, nil
}

// WouldCacheHit is a dry-run existence check with no side effects.
func (c *Cache) WouldCacheHit(ctx context.Context, params domain.ParameterSet) (bool, error) {
	return c.repo.Exists(ctx, params.Hash())
}

// CleanupOldEntries removes entries last used more than maxAgeDays ago and
// returns the number removed.
func (c *Cache) CleanupOldEntries(ctx context.Context, maxAgeDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	deleted, err := c.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.CacheEntriesDeleted.WithLabelValues("age").Add(float64(deleted))
	return deleted, nil
}

// CleanupLeastUsed keeps the keepCount most-used entries and removes the
// rest, returning the number removed.
func (c *Cache) CleanupLeastUsed(ctx context.Context, keepCount int) (int64, error) {
	deleted, err := c.repo.DeleteExceptTopUsed(ctx, keepCount)
	if err != nil {
		return 0, err
	}
	metrics.CacheEntriesDeleted.WithLabelValues("least_used").Add(float64(deleted))
	return deleted, nil
}
