// Package lock serialises operations that share one back-office session.
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "campaign-sheet:session:"

// ErrBusy is returned when another operation holds the lock
var ErrBusy = errors.New("session is busy with another operation")

// Locker hands out exclusive, expiring locks
type Locker interface {
	// Acquire takes key for ttl. The returned release func is safe to call
	// more than once and never releases a lock taken by someone else.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// TokenHash identifies a session token without revealing it
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionKey derives the lock key for a session token. The token itself
// never reaches Redis.
func SessionKey(token string) string {
	return keyPrefix + TokenHash(token)
}

// releaseScript deletes the key only while it still holds our token
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// redisClient is the part of *redis.Client the locker uses
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker locks across replicas with SET NX
type RedisLocker struct {
	client redisClient
}

// NewRedisLocker creates a Redis backed locker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			l.client.Eval(ctx, releaseScript, []string{key}, token)
		})
	}, nil
}

type localEntry struct {
	token   string
	expires time.Time
}

// LocalLocker locks within one process
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]localEntry), now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.expires) {
		return nil, ErrBusy
	}
	token := uuid.NewString()
	l.entries[key] = localEntry{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if e, ok := l.entries[key]; ok && e.token == token {
				delete(l.entries, key)
			}
		})
	}, nil
}
