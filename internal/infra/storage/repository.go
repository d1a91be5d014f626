package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a cache entry doesn't exist. A storage
// failure is never reported as ErrNotFound; the two are distinguishable.
var ErrNotFound = errors.New("prompt cache entry not found")

// PromptRecord is a persisted prompt cache entry, keyed by the parameter
// set hash.
type PromptRecord struct {
	Hash       string    `db:"parameters_hash"`
	Prompt     string    `db:"full_prompt"`
	ImageURL   string    `db:"image_url"`
	CreatedAt  time.Time `db:"created_at"`
	LastUsed   time.Time `db:"last_used"`
	UsageCount int64     `db:"usage_count"`
}

// PromptRepository handles prompt cache persistence. Implementations exist
// for PostgreSQL, Redis and in-memory storage.
type PromptRepository interface {
	// Get retrieves an entry by hash, returning ErrNotFound when absent.
	// Get has no side effects; usage accounting is the caller's job.
	Get(ctx context.Context, hash string) (*PromptRecord, error)

	// Upsert inserts an entry with usage_count=1, or increments usage_count
	// and refreshes last_used when the hash already exists. It returns the
	// stored record.
	Upsert(ctx context.Context, hash, prompt, imageURL string) (*PromptRecord, error)

	// Exists is a side-effect-free existence check.
	Exists(ctx context.Context, hash string) (bool, error)

	// DeleteOlderThan removes entries last used before cutoff and returns
	// the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteExceptTopUsed keeps the keep most-used entries and removes the
	// rest, returning the number deleted.
	DeleteExceptTopUsed(ctx context.Context, keep int) (int64, error)
}

// StorageError wraps a failed storage operation with the statement and
// arguments that failed, so cache failures stay diagnosable and are never
// confused with generation failures.
type StorageError struct {
	Op        string
	Statement string
	Args      []any
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v (statement: %s)", e.Op, e.Err, e.Statement)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError builds a StorageError for a failed statement.
func NewStorageError(op, statement string, args []any, err error) *StorageError {
	return &StorageError{Op: op, Statement: statement, Args: args, Err: err}
}
