package utils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned for unknown or expired reset tokens.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore keeps short-lived password-reset tokens mapped to user ids.
type TokenStore interface {
	Put(ctx context.Context, token string, userID uint, ttl time.Duration) error
	// Take resolves a token to its user and consumes it; a token is
	// single-use.
	Take(ctx context.Context, token string) (uint, error)
}

const resetTokenPrefix = "reset-token:"

// RedisTokenStore keeps tokens in Redis with a TTL, so they survive a
// process restart and expire without any sweeper.
type RedisTokenStore struct {
	Client *redis.Client
}

func NewRedisTokenStore(addr string) *RedisTokenStore {
	return &RedisTokenStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *RedisTokenStore) Put(ctx context.Context, token string, userID uint, ttl time.Duration) error {
	return s.Client.Set(ctx, resetTokenPrefix+token, uint64(userID), ttl).Err()
}

func (s *RedisTokenStore) Take(ctx context.Context, token string) (uint, error) {
	id, err := s.Client.GetDel(ctx, resetTokenPrefix+token).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// MemoryTokenStore is the in-process fallback used when no Redis address
// is configured, and by the test suite.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
}

type memoryToken struct {
	userID  uint
	expires time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memoryToken)}
}

func (s *MemoryTokenStore) Put(_ context.Context, token string, userID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = memoryToken{userID: userID, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Take(_ context.Context, token string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok {
		return 0, ErrTokenNotFound
	}
	delete(s.tokens, token)
	if time.Now().After(entry.expires) {
		return 0, ErrTokenNotFound
	}
	return entry.userID, nil
}
