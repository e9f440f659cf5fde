package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hostelcart/batch-engine/internal/search"
	goredis "github.com/redis/go-redis/v9"
)

var _ search.Index = (*RedisSearchIndex)(nil)

// RedisSearchIndex stores search documents as JSON values keyed by
// search:<entity>:<id>, the layout the campus search service consumes.
// Upserts overwrite in place, so replays of the same index job are no-ops.
type RedisSearchIndex struct {
	client *goredis.Client
}

func NewRedisSearchIndex(client *goredis.Client) (*RedisSearchIndex, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisSearchIndex{client: client}, nil
}

func (s *RedisSearchIndex) Upsert(ctx context.Context, entity, id string, document json.RawMessage) error {
	key, err := documentKey(entity, id)
	if err != nil {
		return err
	}
	if len(document) == 0 {
		return fmt.Errorf("document is required")
	}
	if !json.Valid(document) {
		return fmt.Errorf("document is not valid JSON")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.client.Set(ctx, key, []byte(document), 0).Err(); err != nil {
		return fmt.Errorf("failed to upsert document %q: %w", key, err)
	}
	return nil
}

func (s *RedisSearchIndex) Delete(ctx context.Context, entity, id string) error {
	key, err := documentKey(entity, id)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete document %q: %w", key, err)
	}
	return nil
}

func documentKey(entity, id string) (string, error) {
	trimmedEntity := strings.TrimSpace(entity)
	trimmedID := strings.TrimSpace(id)
	if trimmedEntity == "" {
		return "", fmt.Errorf("entity is required")
	}
	if trimmedID == "" {
		return "", fmt.Errorf("document id is required")
	}
	return fmt.Sprintf("search:%s:%s", trimmedEntity, trimmedID), nil
}
