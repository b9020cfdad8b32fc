package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pandochealth/triage/pkg/logging"
)

// SessionStore persists per-conversation dialogue state between turns. A
// missing session is not an error; Get returns a fresh default state.
type SessionStore interface {
	Get(ctx context.Context, key SessionKey, pageSize int) (*SessionState, error)
	Save(ctx context.Context, key SessionKey, state *SessionState) error
	Clear(ctx context.Context, key SessionKey) error
}

// RedisSessionStore keeps session state as one JSON value per conversation
// with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("triage: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisSessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("triage.internal.session"),
	}
}

func (s *RedisSessionStore) Get(ctx context.Context, key SessionKey, pageSize int) (*SessionState, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err == redis.Nil {
		return NewSessionState(pageSize), nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("triage: failed to load session: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("triage: failed to decode session: %w", err)
	}
	if state.PageSize <= 0 {
		state.PageSize = pageSize
	}
	return &state, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, key SessionKey, state *SessionState) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, key.String(), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, key SessionKey) error {
	ctx, span := s.tracer.Start(ctx, "session.clear")
	defer span.End()

	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("triage: failed to clear session: %w", err)
	}
	return nil
}

type memoryEntry struct {
	state    *SessionState
	deadline time.Time
}

// MemorySessionStore is the in-process fallback used when Redis is down or in
// tests. Entries honor the same TTL as the Redis store.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, key SessionKey, pageSize int) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key.String()]
	if !ok || s.now().After(entry.deadline) {
		delete(s.entries, key.String())
		return NewSessionState(pageSize), nil
	}

	// Hand back a copy so the caller's mutations stay local until Save.
	data, err := json.Marshal(entry.state)
	if err != nil {
		return nil, fmt.Errorf("triage: failed to copy session: %w", err)
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("triage: failed to copy session: %w", err)
	}
	return &state, nil
}

func (s *MemorySessionStore) Save(_ context.Context, key SessionKey, state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("triage: failed to marshal session: %w", err)
	}
	var copied SessionState
	if err := json.Unmarshal(data, &copied); err != nil {
		return fmt.Errorf("triage: failed to marshal session: %w", err)
	}

	now := s.now()
	s.sweepLocked(now)
	s.entries[key.String()] = memoryEntry{
		state:    &copied,
		deadline: now.Add(s.ttl),
	}
	return nil
}

// sweepLocked drops every expired entry. Callers hold s.mu. Running it on
// each Save keeps the fallback map bounded by live sessions without a
// background goroutine.
func (s *MemorySessionStore) sweepLocked(now time.Time) {
	for k, entry := range s.entries {
		if now.After(entry.deadline) {
			delete(s.entries, k)
		}
	}
}

func (s *MemorySessionStore) Clear(_ context.Context, key SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key.String())
	return nil
}

// FailoverSessionStore prefers Redis and falls back to an in-process store
// when Redis errors, so a cache outage degrades persistence instead of
// breaking conversations.
type FailoverSessionStore struct {
	primary  SessionStore
	fallback SessionStore
	logger   *logging.Logger
}

func NewFailoverSessionStore(primary, fallback SessionStore, logger *logging.Logger) *FailoverSessionStore {
	if primary == nil {
		panic("triage: primary session store cannot be nil")
	}
	if fallback == nil {
		panic("triage: fallback session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverSessionStore{primary: primary, fallback: fallback, logger: logger}
}

func (s *FailoverSessionStore) Get(ctx context.Context, key SessionKey, pageSize int) (*SessionState, error) {
	state, err := s.primary.Get(ctx, key, pageSize)
	if err == nil {
		return state, nil
	}
	s.logger.Warn("session store get failed, using fallback", "error", err.Error())
	return s.fallback.Get(ctx, key, pageSize)
}

func (s *FailoverSessionStore) Save(ctx context.Context, key SessionKey, state *SessionState) error {
	if err := s.primary.Save(ctx, key, state); err != nil {
		s.logger.Warn("session store save failed, using fallback", "error", err.Error())
		return s.fallback.Save(ctx, key, state)
	}
	return nil
}

func (s *FailoverSessionStore) Clear(ctx context.Context, key SessionKey) error {
	if err := s.primary.Clear(ctx, key); err != nil {
		s.logger.Warn("session store clear failed, using fallback", "error", err.Error())
		return s.fallback.Clear(ctx, key)
	}
	return nil
}
