package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// Session is the server-side state of one checkout attempt, keyed by an
// opaque id that travels through the provider return URLs. It replaces
// sticky per-user web sessions: any instance can serve the callback.
type Session struct {
	ID             string `json:"id"`
	UserID         int    `json:"userId"`
	PendingOrderID int    `json:"pendingOrderId,omitempty"`
	IntentID       string `json:"intentId,omitempty"`
	AmountMinor    int64  `json:"amountMinor"`
	CreatedAt      string `json:"createdAt"`
}

type SessionStore interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

const keySession = "checkout:session:%s"

// SessionTTL bounds how long a checkout attempt can sit between start and
// provider callback.
var SessionTTL = 24 * time.Hour

// RedisSessionStore keeps sessions in Redis with a TTL.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Put(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, fmt.Sprintf(keySession, sess.ID), raw, SessionTTL).Err()
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(keySession, id)).Bytes()
	if err == redis.Nil {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(keySession, id)).Err()
}

// InMemorySessionStore is used for tests and local scenarios.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

func (s *InMemorySessionStore) Put(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len reports how many sessions are live; tests use it to assert cleanup.
func (s *InMemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
