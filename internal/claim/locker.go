package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Locker grants exclusive, non-blocking critical sections keyed by string.
type Locker interface {
	// TryLock acquires key without waiting. ok is false when another holder has it.
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker constructs an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// TryLock implements Locker.
func (l *MemoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

// DefaultLockTTL bounds how long a crashed holder keeps a Redis lock.
const DefaultLockTTL = time.Minute

// unlockScript deletes the key only while it still carries the holder's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares claim locks between instances through Redis.
type RedisLocker struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

// NewRedisLocker creates a Redis-backed Locker.
func NewRedisLocker(rdb *redis.Client, keyPrefix string, ttl time.Duration) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "giftbot:lock:"
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (l *RedisLocker) key(name string) string { return l.keyNS + name }

// TryLock implements Locker with SET NX PX and a compare-and-delete release.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if l == nil || l.rdb == nil {
		return nil, false, errors.New("claim lock: nil redis client")
	}
	token := uuid.NewString()
	fullKey := l.key(key)
	acquired, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("claim lock: acquire %s: %w", fullKey, err)
	}
	if !acquired {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			released, errRelease := unlockScript.Run(releaseCtx, l.rdb, []string{fullKey}, token).Int()
			switch {
			case errRelease != nil:
				log.WithError(errRelease).WithFields(log.Fields{"key": fullKey, "ttl": l.ttl.String()}).
					Warn("claim lock: release failed, key stays held until it expires")
			case released == 0:
				log.WithField("key", fullKey).Warn("claim lock: expired before release")
			}
		})
	}, true, nil
}
