package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-billing/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockWaitsForHolder(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{Client: client, RetryBackoff: 5 * time.Millisecond, Wait: true}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		order []string
	)
	firstIn := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan error, 2)

	go func() {
		done <- locker.WithLock(ctx, "reprice", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstIn)
			<-releaseFirst
			return nil
		})
	}()
	<-firstIn

	go func() {
		done <- locker.WithLock(ctx, "reprice", time.Second, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()
	close(releaseFirst)

	require.NoError(t, <-done)
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestWithLockFailsFastWhenHeld(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("reprice", "someone-else"))

	locker := lock.Locker{Client: client}
	called := false
	err := locker.WithLock(context.Background(), "reprice", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrHeld)
	require.False(t, called)

	got, err := mr.Get("reprice")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestWithLockReleasesAfterError(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{Client: client}
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "reprice", time.Minute, func(context.Context) error {
		require.True(t, mr.Exists("reprice"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("reprice"))
}
