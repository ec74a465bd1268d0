package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_NoScope(t *testing.T) {
	_, err := Conn(context.Background())
	assert.ErrorIs(t, err, ErrNoScope)
}

func TestGetScope_NilScopeIsAbsent(t *testing.T) {
	ctx := SetScope(context.Background(), nil)
	_, ok := GetScope(ctx)
	assert.False(t, ok)
}

func TestWithTx_NoScope(t *testing.T) {
	called := false
	err := WithTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNoScope)
	assert.False(t, called)
}

func TestLockKey_RequiresTransaction(t *testing.T) {
	err := LockKey(context.Background(), "fact:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a transaction")
}

func TestMemoryKeyLocker_SerializesSameKey(t *testing.T) {
	locker := NewMemoryKeyLocker()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithKeyLock(context.Background(), "alias:oak board", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					old := atomic.LoadInt32(&maxSeen)
					if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
						break
					}
				}
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Empty(t, locker.locks, "lock entries are released once unused")
}

func TestMemoryKeyLocker_PropagatesError(t *testing.T) {
	locker := NewMemoryKeyLocker()
	boom := errors.New("boom")

	err := locker.WithKeyLock(context.Background(), "k", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, locker.locks)
}

func TestMemoryKeyLocker_DistinctKeysDoNotBlock(t *testing.T) {
	locker := NewMemoryKeyLocker()
	done := make(chan struct{})

	err := locker.WithKeyLock(context.Background(), "a", func(ctx context.Context) error {
		go func() {
			_ = locker.WithKeyLock(ctx, "b", func(context.Context) error { return nil })
			close(done)
		}()
		<-done
		return nil
	})
	require.NoError(t, err)
}
