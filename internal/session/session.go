// Package session tracks the ephemeral pending-location flag: which
// operation, if any, the next location event from a user belongs to.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pending is the per-conversation state a shared location resolves against.
type Pending string

const (
	None     Pending = ""
	CheckIn  Pending = "checkin"
	CheckOut Pending = "checkout"
)

// Store holds per-user pending flags with a TTL so an abandoned prompt
// cannot capture a location shared much later.
type Store interface {
	Set(ctx context.Context, userID int64, p Pending) error
	Get(ctx context.Context, userID int64) (Pending, error)
	Clear(ctx context.Context, userID int64) error
}

// Memory is a mutex-map store for single-process deployments and tests.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	state map[int64]entry
}

type entry struct {
	pending Pending
	expires time.Time
}

// NewMemory creates an in-memory store.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Memory{ttl: ttl, now: time.Now, state: make(map[int64]entry)}
}

// Set records the pending operation for a user.
func (m *Memory) Set(_ context.Context, userID int64, p Pending) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == None {
		delete(m.state, userID)
		return nil
	}
	m.state[userID] = entry{pending: p, expires: m.now().Add(m.ttl)}
	return nil
}

// Get returns the pending operation, or None when unset or expired.
func (m *Memory) Get(_ context.Context, userID int64) (Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state[userID]
	if !ok {
		return None, nil
	}
	if m.now().After(e.expires) {
		delete(m.state, userID)
		return None, nil
	}
	return e.pending, nil
}

// Clear drops any pending flag for the user.
func (m *Memory) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, userID)
	return nil
}

// RedisStore keeps pending flags in redis so multiple bot processes can
// share conversation state.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID int64) string {
	return "attendbot:session:" + strconv.FormatInt(userID, 10)
}

// Set records the pending operation for a user with the store TTL.
func (s *RedisStore) Set(ctx context.Context, userID int64, p Pending) error {
	if p == None {
		return s.Clear(ctx, userID)
	}
	return s.client.Set(ctx, sessionKey(userID), string(p), s.ttl).Err()
}

// Get returns the pending operation, or None when unset or expired.
func (s *RedisStore) Get(ctx context.Context, userID int64) (Pending, error) {
	val, err := s.client.Get(ctx, sessionKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return None, nil
		}
		return None, err
	}
	return Pending(val), nil
}

// Clear drops any pending flag for the user.
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, sessionKey(userID)).Err()
}
