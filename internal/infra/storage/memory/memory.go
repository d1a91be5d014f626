package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/atelier/internal/infra/storage"
)

// PromptStore is an in-memory storage.PromptRepository. It is the default
// backend when no database is configured and the store unit tests run
// against.
type PromptStore struct {
	mu      sync.RWMutex
	records map[string]*storage.PromptRecord
}

// NewPromptStore creates an empty in-memory store.
func NewPromptStore() *PromptStore {
	return &PromptStore{records: make(map[string]*storage.PromptRecord)}
}

func (s *PromptStore) Get(ctx context.Context, hash string) (*storage.PromptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *PromptStore) Upsert(ctx context.Context, hash, prompt, imageURL string) (*storage.PromptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec, ok := s.records[hash]
	if !ok {
		rec = &storage.PromptRecord{
			Hash:       hash,
			Prompt:     prompt,
			ImageURL:   imageURL,
			CreatedAt:  now,
			LastUsed:   now,
			UsageCount: 1,
		}
		s.records[hash] = rec
	} else {
		rec.UsageCount++
		rec.LastUsed = now
		if imageURL != "" {
			rec.ImageURL = imageURL
		}
	}

	cp := *rec
	return &cp, nil
}

func (s *PromptStore) Exists(ctx context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[hash]
	return ok, nil
}

func (s *PromptStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for hash, rec := range s.records {
		if rec.LastUsed.Before(cutoff) {
			delete(s.records, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (s *PromptStore) DeleteExceptTopUsed(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) <= keep {
		return 0, nil
	}

	recs := make([]*storage.PromptRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	// Most used first; ties broken by recency so eviction is deterministic.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].UsageCount != recs[j].UsageCount {
			return recs[i].UsageCount > recs[j].UsageCount
		}
		return recs[i].LastUsed.After(recs[j].LastUsed)
	})

	var deleted int64
	for _, rec := range recs[keep:] {
		delete(s.records, rec.Hash)
		deleted++
	}
	return deleted, nil
}

// Len returns the number of stored entries.
func (s *PromptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
