// Package dedupe suppresses duplicate trigger deliveries. Webhook providers
// and message brokers redeliver; without a dedupe check, one tenant event
// could start two executions of the same workflow.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a trigger key blocks redelivery.
const DefaultTTL = 24 * time.Hour

// Store answers "has this trigger key been seen before" exactly once per
// key within the TTL window.
type Store interface {
	// FirstSeen atomically marks the key and reports whether this caller
	// was the first to do so.
	FirstSeen(ctx context.Context, organizationID, key string, ttl time.Duration) (bool, error)
	Close() error
}

// Key builds the dedupe key for a trigger delivery.
func Key(workflowID, eventID string) string {
	return fmt.Sprintf("trigger:%s:%s", workflowID, eventID)
}

// RedisStore implements Store on Redis. SET NX is the atomic first-writer
// test, so deduplication holds across worker processes.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) FirstSeen(ctx context.Context, organizationID, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	first, err := s.client.SetNX(ctx, "dedupe:"+organizationID+":"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe check: %w", err)
	}

	return first, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore implements Store in process memory for development setups and
// tests. Expiry is checked lazily on access.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) FirstSeen(ctx context.Context, organizationID, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	fullKey := organizationID + ":" + key
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[fullKey]; ok && expiry.After(now) {
		return false, nil
	}

	s.seen[fullKey] = now.Add(ttl)

	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
