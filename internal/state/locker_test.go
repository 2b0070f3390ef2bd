package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	locker := NewRedisLocker(client, 5*time.Second, 0, testLogger())

	unlock, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	assert.True(t, mr.Exists("session:lock:1"))

	_, err = locker.Lock(ctx, 1)
	assert.ErrorIs(t, err, ErrStateLocked)

	other, err := locker.Lock(ctx, 2)
	require.NoError(t, err)
	other()

	unlock()
	assert.False(t, mr.Exists("session:lock:1"))

	again, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	locker := NewRedisLocker(client, time.Second, 0, testLogger())

	staleUnlock, err := locker.Lock(ctx, 5)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	freshUnlock, err := locker.Lock(ctx, 5)
	require.NoError(t, err)

	staleUnlock()
	assert.True(t, mr.Exists("session:lock:5"), "stale holder must not release a newer lock")

	freshUnlock()
	assert.False(t, mr.Exists("session:lock:5"))
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, 1)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, 1)
	assert.ErrorIs(t, err, ErrStateLocked)

	other, err := locker.Lock(ctx, 2)
	require.NoError(t, err)
	other()

	unlock()

	again, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	again()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.locks)
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker(0)

	unlock, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locker.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
