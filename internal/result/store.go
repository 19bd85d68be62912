package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/career-assessment/internal/quiz"
)

// ErrNotFound means no result is cached for the user and test.
var ErrNotFound = errors.New("result not found")

// DefaultChannel is the Pub/Sub channel result events are published on.
const DefaultChannel = "results:ready"

// Store keeps the latest scored result per (user, test).
type Store interface {
	Save(ctx context.Context, event quiz.ResultEvent) error
	Latest(ctx context.Context, userID, test string) (quiz.ResultEvent, error)
}

// RedisStore caches results in Redis and announces them on a Pub/Sub channel so every
// API replica can push them to its WebSocket clients.
type RedisStore struct {
	redis   *redis.Client
	ttl     time.Duration
	prefix  string
	channel string
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	TTL            time.Duration
	RedisKeyPrefix string
	Channel        string
}

func NewRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "result"
	}
	channel := opts.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisStore{redis: client, ttl: opts.TTL, prefix: prefix, channel: channel}
}

func (s *RedisStore) key(userID, test string) string {
	return fmt.Sprintf("%s:latest:%s:%s", s.prefix, userID, test)
}

// Save stores event as the latest result and publishes it.
func (s *RedisStore) Save(ctx context.Context, event quiz.ResultEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(event.UserID, event.Test), data, s.ttl)
	pipe.Publish(ctx, s.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, userID, test string) (quiz.ResultEvent, error) {
	data, err := s.redis.Get(ctx, s.key(userID, test)).Bytes()
	if errors.Is(err, redis.Nil) {
		return quiz.ResultEvent{}, ErrNotFound
	}
	if err != nil {
		return quiz.ResultEvent{}, fmt.Errorf("load result: %w", err)
	}
	var event quiz.ResultEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return quiz.ResultEvent{}, fmt.Errorf("decode result: %w", err)
	}
	return event, nil
}

// Channel is the Pub/Sub channel Save publishes on.
func (s *RedisStore) Channel() string { return s.channel }

// MemoryStore is a process-local Store. Expired entries are dropped on read.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	event   quiz.ResultEvent
	expires time.Time
}

func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{ttl: ttl, now: now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(_ context.Context, event quiz.ResultEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{event: event}
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.entries[event.UserID+"\x00"+event.Test] = entry
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, userID, test string) (quiz.ResultEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[userID+"\x00"+test]
	if !ok || (!entry.expires.IsZero() && !s.now().Before(entry.expires)) {
		return quiz.ResultEvent{}, ErrNotFound
	}
	return entry.event, nil
}
