package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem, err := NewMemoryStore(100)
	require.NoError(t, err)
	t.Cleanup(mem.Close)

	return map[string]Store{
		"redis":  NewRedisStore(client, testLogger()),
		"memory": mem,
	}
}

func TestGuard_RunsOncePerKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			guard := NewGuard(store, time.Minute, testLogger())

			calls := 0
			fn := func(context.Context) error {
				calls++
				return nil
			}

			ran, err := guard.Run(ctx, "update:1", fn)
			require.NoError(t, err)
			assert.True(t, ran)

			ran, err = guard.Run(ctx, "update:1", fn)
			require.NoError(t, err)
			assert.False(t, ran)

			ran, err = guard.Run(ctx, "update:2", fn)
			require.NoError(t, err)
			assert.True(t, ran)

			assert.Equal(t, 2, calls)
		})
	}
}

func TestGuard_FailureReleasesKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			guard := NewGuard(store, time.Minute, testLogger())
			boom := errors.New("boom")

			ran, err := guard.Run(ctx, "update:9", func(context.Context) error { return boom })
			assert.True(t, ran)
			assert.ErrorIs(t, err, boom)

			calls := 0
			ran, err = guard.Run(ctx, "update:9", func(context.Context) error {
				calls++
				return nil
			})
			require.NoError(t, err)
			assert.True(t, ran)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestGuard_StoreDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	guard := NewGuard(NewRedisStore(client, testLogger()), time.Minute, testLogger())

	calls := 0
	for i := 0; i < 2; i++ {
		ran, err := guard.Run(context.Background(), "update:1", func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	}
	assert.Equal(t, 2, calls)
}

func TestGuard_EmptyKeyAlwaysRuns(t *testing.T) {
	guard := NewGuard(nil, 0, testLogger())

	calls := 0
	for i := 0; i < 3; i++ {
		ran, err := guard.Run(context.Background(), "", func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	}
	assert.Equal(t, 3, calls)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("cb", "abc"), Key("cb", "abc"))
	assert.NotEqual(t, Key("cb", "abc"), Key("cb", "abd"))
	assert.Len(t, Key(1, 2, 3), 32)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
