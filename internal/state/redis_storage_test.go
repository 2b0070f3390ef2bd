package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorage_SaveAndGet(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, time.Hour, testLogger())
	ctx := context.Background()

	session := &Session{
		UserID: 123,
		State:  StatePaymentMethod,
		Data:   map[string]string{"amount": "150.50"},
	}
	require.NoError(t, storage.Save(ctx, session))

	result, err := storage.Get(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, result.UserID)
	assert.Equal(t, StatePaymentMethod, result.State)
	assert.Equal(t, "150.50", result.Get("amount"))
	assert.False(t, result.UpdatedAt.IsZero())
}

func TestRedisStorage_GetNotFound(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, time.Hour, testLogger())

	session, err := storage.Get(context.Background(), 999)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStorage_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, time.Hour, testLogger())
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, &Session{UserID: 456, State: StateOrderAddress}))
	require.NoError(t, storage.Delete(ctx, 456))
	require.NoError(t, storage.Delete(ctx, 456))

	_, err := storage.Get(ctx, 456)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStorage_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	storage := NewRedisStorage(client, time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, &Session{UserID: 1, State: StateAwaitingCaptcha}))
	mr.FastForward(2 * time.Minute)

	_, err := storage.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStorage_List(t *testing.T) {
	client, _ := setupTestRedis(t)
	storage := NewRedisStorage(client, time.Hour, testLogger())
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, storage.Save(ctx, &Session{UserID: id, State: StateMenuReady}))
	}
	require.NoError(t, client.Set(ctx, "session:state:broken", "{", 0).Err())
	require.NoError(t, client.Set(ctx, "unrelated:key", "x", 0).Err())

	sessions, err := storage.List(ctx)
	require.NoError(t, err)

	ids := make([]int64, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.UserID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
}
