package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore remembers backend token validations and local revocations.
type TokenStore interface {
	MarkValid(ctx context.Context, token string, ttl time.Duration) error
	IsValid(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// tokenKey hashes the token so raw bearer strings never land in Redis.
func tokenKey(prefix, token string) string {
	sum := sha256.Sum256([]byte(token))
	return prefix + hex.EncodeToString(sum[:])
}

const (
	validPrefix   = "auth:valid:"
	revokedPrefix = "auth:revoked:"
)

// RedisTokenStore keeps token state in Redis so every API replica shares it.
type RedisTokenStore struct {
	redis *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{redis: client}
}

func (s *RedisTokenStore) MarkValid(ctx context.Context, token string, ttl time.Duration) error {
	return s.redis.Set(ctx, tokenKey(validPrefix, token), 1, ttl).Err()
}

func (s *RedisTokenStore) IsValid(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, tokenKey(validPrefix, token)).Result()
	return n > 0, err
}

// Revoke blocks token for ttl and forgets any cached validation.
func (s *RedisTokenStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, tokenKey(revokedPrefix, token), 1, ttl)
	pipe.Del(ctx, tokenKey(validPrefix, token))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, tokenKey(revokedPrefix, token)).Result()
	return n > 0, err
}

// MemoryTokenStore is a process-local TokenStore for tests and single-node runs.
type MemoryTokenStore struct {
	mu      sync.Mutex
	now     func() time.Time
	valid   map[string]time.Time
	revoked map[string]time.Time
}

func NewMemoryTokenStore(now func() time.Time) *MemoryTokenStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryTokenStore{
		now:     now,
		valid:   make(map[string]time.Time),
		revoked: make(map[string]time.Time),
	}
}

func (s *MemoryTokenStore) MarkValid(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid[tokenKey(validPrefix, token)] = s.now().Add(ttl)
	return nil
}

func (s *MemoryTokenStore) IsValid(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(s.valid, tokenKey(validPrefix, token)), nil
}

func (s *MemoryTokenStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenKey(revokedPrefix, token)] = s.now().Add(ttl)
	delete(s.valid, tokenKey(validPrefix, token))
	return nil
}

func (s *MemoryTokenStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(s.revoked, tokenKey(revokedPrefix, token)), nil
}

func (s *MemoryTokenStore) live(m map[string]time.Time, key string) bool {
	exp, ok := m[key]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(m, key)
		return false
	}
	return true
}
