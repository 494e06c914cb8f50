// Package redis provides a Redis-backed ports.KeyValueStore, used when several
// front-end processes share one session.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/upjv/prospection-ui/internal/ports"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "prospection:"

// KVStoreOptions configures a KVStore.
type KVStoreOptions struct {
	Client redis.UniversalClient
	Prefix string
	// TTL bounds how long an entry survives without being rewritten; zero keeps it forever.
	TTL time.Duration
}

// KVStore keeps session entries as plain Redis strings under a prefix.
type KVStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.KeyValueStore = (*KVStore)(nil)

// NewKVStore creates a KVStore. A client is required.
func NewKVStore(opts KVStoreOptions) (*KVStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KVStore{client: opts.Client, prefix: prefix, ttl: opts.TTL}, nil
}

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ports.ErrKeyNotFound
	}
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, s.prefix+k)
		}
	}
	if len(full) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
