package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vietddude/atelier/internal/infra/storage"
)

// PromptRepo implements storage.PromptRepository using PostgreSQL.
type PromptRepo struct {
	db *DB
}

// NewPromptRepo creates a new PostgreSQL prompt repository.
func NewPromptRepo(db *DB) *PromptRepo {
	return &PromptRepo{db: db}
}

const getStmt = `
SELECT parameters_hash, full_prompt, image_url, created_at, last_used, usage_count
FROM prompt_cache WHERE parameters_hash = $1`

// Get retrieves an entry by hash.
func (r *PromptRepo) Get(ctx context.Context, hash string) (*storage.PromptRecord, error) {
	var rec storage.PromptRecord
	err := r.db.GetContext(ctx, &rec, getStmt, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.NewStorageError("get", getStmt, []any{hash}, err)
	}
	return &rec, nil
}

const upsertStmt = `
INSERT INTO prompt_cache (parameters_hash, full_prompt, image_url, created_at, last_used, usage_count)
VALUES ($1, $2, $3, $4, $4, 1)
ON CONFLICT (parameters_hash) DO UPDATE SET
	usage_count = prompt_cache.usage_count + 1,
	last_used   = EXCLUDED.last_used,
	image_url   = CASE WHEN EXCLUDED.image_url <> '' THEN EXCLUDED.image_url ELSE prompt_cache.image_url END
RETURNING parameters_hash, full_prompt, image_url, created_at, last_used, usage_count`

// Upsert inserts or bumps an entry and returns the stored record.
func (r *PromptRepo) Upsert(ctx context.Context, hash, prompt, imageURL string) (*storage.PromptRecord, error) {
	var rec storage.PromptRecord
	err := r.db.GetContext(ctx, &rec, upsertStmt, hash, prompt, imageURL, time.Now().UTC())
	if err != nil {
		return nil, storage.NewStorageError("upsert", upsertStmt, []any{hash, prompt, imageURL}, err)
	}
	return &rec, nil
}

const existsStmt = `SELECT EXISTS (SELECT 1 FROM prompt_cache WHERE parameters_hash = $1)`

// Exists checks for an entry without touching usage accounting.
func (r *PromptRepo) Exists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, existsStmt, hash); err != nil {
		return false, storage.NewStorageError("exists", existsStmt, []any{hash}, err)
	}
	return exists, nil
}

const deleteOlderStmt = `DELETE FROM prompt_cache WHERE last_used < $1`

// DeleteOlderThan removes entries last used before cutoff.
func (r *PromptRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteOlderStmt, cutoff)
	if err != nil {
		return 0, storage.NewStorageError("delete_older_than", deleteOlderStmt, []any{cutoff}, err)
	}
	return res.RowsAffected()
}

const deleteExceptTopStmt = `
DELETE FROM prompt_cache WHERE parameters_hash NOT IN (
	SELECT parameters_hash FROM prompt_cache
	ORDER BY usage_count DESC, last_used DESC
	LIMIT $1
)`

// DeleteExceptTopUsed keeps the keep most-used entries and removes the rest.
func (r *PromptRepo) DeleteExceptTopUsed(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExceptTopStmt, keep)
	if err != nil {
		return 0, storage.NewStorageError("delete_except_top_used", deleteExceptTopStmt, []any{keep}, err)
	}
	return res.RowsAffected()
}
