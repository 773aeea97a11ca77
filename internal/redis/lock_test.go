package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestWithSlotLockRunsCallback(t *testing.T) {
	client := newTestClient(t)
	locker := NewRedisSlotLocker(client, time.Second)

	ran := false
	err := locker.WithSlotLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}

func TestWithSlotLockContention(t *testing.T) {
	client := newTestClient(t)
	locker := NewRedisSlotLocker(client, time.Second)
	slotID := uuid.New()

	err := locker.WithSlotLock(context.Background(), slotID, func(ctx context.Context) error {
		// Second acquisition of the same slot must fail while held.
		inner := locker.WithSlotLock(ctx, slotID, func(ctx context.Context) error {
			return nil
		})
		require.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)

	// Released after the callback returns.
	err = locker.WithSlotLock(context.Background(), slotID, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockPropagatesCallbackError(t *testing.T) {
	client := newTestClient(t)
	locker := NewRedisSlotLocker(client, time.Second)

	sentinel := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
}
