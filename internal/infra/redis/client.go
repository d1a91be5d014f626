package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/atelier/internal/infra/storage"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// PromptStore implements storage.PromptRepository on Redis. Each entry is a
// hash; two sorted sets index entries by usage count and by recency so both
// cleanup operations stay O(log n) per member.
type PromptStore struct {
	rdb *redis.Client
}

const (
	entryPrefix = "prompt_cache:"
	usageKey    = "prompt_cache_index:by_usage"
	recencyKey  = "prompt_cache_index:by_recency"
)

// NewPromptStore creates a Redis-backed prompt store and verifies the
// connection.
func NewPromptStore(cfg Config) (*PromptStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &PromptStore{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (s *PromptStore) Close() error {
	return s.rdb.Close()
}

func entryKey(hash string) string {
	return entryPrefix + hash
}

func (s *PromptStore) Get(ctx context.Context, hash string) (*storage.PromptRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, entryKey(hash)).Result()
	if err != nil {
		return nil, storage.NewStorageError("get", "HGETALL "+entryKey(hash), nil, err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}
	return recordFromFields(hash, fields), nil
}

func (s *PromptStore) Upsert(ctx context.Context, hash, prompt, imageURL string) (*storage.PromptRecord, error) {
	key := entryKey(hash)
	now := time.Now().UTC()

	pipe := s.rdb.TxPipeline()
	pipe.HSetNX(ctx, key, "full_prompt", prompt)
	pipe.HSetNX(ctx, key, "created_at", now.Unix())
	if imageURL != "" {
		pipe.HSet(ctx, key, "image_url", imageURL)
	}
	pipe.HSet(ctx, key, "last_used", now.Unix())
	usage := pipe.HIncrBy(ctx, key, "usage_count", 1)
	pipe.ZIncrBy(ctx, usageKey, 1, hash)
	pipe.ZAdd(ctx, recencyKey, redis.Z{Score: float64(now.Unix()), Member: hash})

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storage.NewStorageError("upsert", "MULTI prompt_cache upsert", []any{hash}, err)
	}

	rec, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	rec.UsageCount = usage.Val()
	return rec, nil
}

func (s *PromptStore) Exists(ctx context.Context, hash string) (bool, error) {
	n, err := s.rdb.Exists(ctx, entryKey(hash)).Result()
	if err != nil {
		return false, storage.NewStorageError("exists", "EXISTS "+entryKey(hash), nil, err)
	}
	return n > 0, nil
}

func (s *PromptStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	max := strconv.FormatInt(cutoff.Unix(), 10)
	hashes, err := s.rdb.ZRangeByScore(ctx, recencyKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + max,
	}).Result()
	if err != nil {
		return 0, storage.NewStorageError("delete_older_than", "ZRANGEBYSCORE "+recencyKey, []any{max}, err)
	}
	return s.deleteHashes(ctx, "delete_older_than", hashes)
}

func (s *PromptStore) DeleteExceptTopUsed(ctx context.Context, keep int) (int64, error) {
	total, err := s.rdb.ZCard(ctx, usageKey).Result()
	if err != nil {
		return 0, storage.NewStorageError("delete_except_top_used", "ZCARD "+usageKey, nil, err)
	}
	if total <= int64(keep) {
		return 0, nil
	}

	// Ascending by usage count: the least-used entries come first.
	victims, err := s.rdb.ZRange(ctx, usageKey, 0, total-int64(keep)-1).Result()
	if err != nil {
		return 0, storage.NewStorageError("delete_except_top_used", "ZRANGE "+usageKey, []any{keep}, err)
	}
	return s.deleteHashes(ctx, "delete_except_top_used", victims)
}

func (s *PromptStore) deleteHashes(ctx context.Context, op string, hashes []string) (int64, error) {
	if len(hashes) == 0 {
		return 0, nil
	}

	pipe := s.rdb.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, entryKey(h))
	}
	members := make([]interface{}, len(hashes))
	for i, h := range hashes {
		members[i] = h
	}
	pipe.ZRem(ctx, usageKey, members...)
	pipe.ZRem(ctx, recencyKey, members...)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, storage.NewStorageError(op, "MULTI prompt_cache delete", []any{len(hashes)}, err)
	}
	return int64(len(hashes)), nil
}

func recordFromFields(hash string, fields map[string]string) *storage.PromptRecord {
	rec := &storage.PromptRecord{
		Hash:     hash,
		Prompt:   fields["full_prompt"],
		ImageURL: fields["image_url"],
	}
	if v, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		rec.CreatedAt = time.Unix(v, 0).UTC()
	}
	if v, err := strconv.ParseInt(fields["last_used"], 10, 64); err == nil {
		rec.LastUsed = time.Unix(v, 0).UTC()
	}
	if v, err := strconv.ParseInt(fields["usage_count"], 10, 64); err == nil {
		rec.UsageCount = v
	}
	return rec
}
