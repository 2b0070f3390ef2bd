package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPattern    = "session:lock:%d"
	lockRetryInterval = 25 * time.Millisecond
)

// ErrStateLocked indicates that another update for the same user held the lock for too long.
var ErrStateLocked = errors.New("state is locked, try again later")

// releaseScript deletes the lock only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes work per user. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, userID int64) (func(), error)
}

// RedisLocker is a per-user lock shared by every bot replica.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
	log    *slog.Logger
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration, log *slog.Logger) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		log:    log,
	}
}

// Lock retries SET NX until the lock is acquired, the wait elapses, or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	key := fmt.Sprintf(lockKeyPattern, userID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.log.Error("failed to acquire user state lock", slog.Int64("user_id", userID), slog.Any("error", err))
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			return func() { l.release(ctx, key, token, userID) }, nil
		}

		if !time.Now().Before(deadline) {
			l.log.Warn("user state lock already held", slog.Int64("user_id", userID))
			return nil, ErrStateLocked
		}

		timer := time.NewTimer(lockRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) release(ctx context.Context, key, token string, userID int64) {
	ctx = context.WithoutCancel(ctx)
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.log.Error("failed to release user state lock", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// LocalLocker is an in-process keyed mutex for single-replica deployments.
type LocalLocker struct {
	wait  time.Duration
	mu    sync.Mutex
	locks map[int64]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		wait:  wait,
		locks: make(map[int64]*localLock),
	}
}

func (l *LocalLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	entry := l.acquireEntry(userID)

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.releaseEntry(userID, entry)
		}, nil
	case <-ctx.Done():
		l.releaseEntry(userID, entry)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrStateLocked
		}
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) acquireEntry(userID int64) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[userID]
	if !ok {
		entry = &localLock{sem: make(chan struct{}, 1)}
		l.locks[userID] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalLocker) releaseEntry(userID int64, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, userID)
	}
}
