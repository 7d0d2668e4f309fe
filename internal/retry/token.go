package retry

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/allisson/clinicops/internal/errors"
)

// TokenStore is a distributed "set if not exists with TTL" lock used to make retry
// scheduling idempotent across processes.
type TokenStore interface {
	// Acquire stores key for ttl and reports whether this caller now owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release clears key so the subject can be scheduled again.
	Release(ctx context.Context, key string) error
}

// RedisTokenStore implements TokenStore with Redis SETNX.
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisTokenStore creates a RedisTokenStore. Keys are stored as prefix+key.
func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		prefix: prefix,
	}
}

// Acquire sets the token only when it does not exist yet.
func (s *RedisTokenStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, apperrors.Wrapf(err, "failed to acquire retry token %s", key)
	}
	return acquired, nil
}

// Release deletes the token.
func (s *RedisTokenStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return apperrors.Wrapf(err, "failed to release retry token %s", key)
	}
	return nil
}

// MemoryTokenStore implements TokenStore in process memory. It only coordinates
// goroutines of a single process and is meant for single-instance deployments and tests.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemoryTokenStore creates an empty MemoryTokenStore.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Acquire stores key until now+ttl unless an unexpired token already exists.
func (s *MemoryTokenStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.tokens[key]; ok && now.Before(expiresAt) {
		return false, nil
	}

	s.tokens[key] = now.Add(ttl)
	return true, nil
}

// Release deletes key.
func (s *MemoryTokenStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)
	return nil
}
