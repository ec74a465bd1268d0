package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// WithTx runs fn inside a transaction on the scoped connection. Repositories
// called with the context passed to fn join the transaction. A nested call
// reuses the outer transaction.
func WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return fn(ctx)
	}

	scope, ok := GetScope(ctx)
	if !ok {
		return ErrNoScope
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockKey takes a transaction-scoped advisory lock on key. The lock is held
// until the surrounding transaction ends.
func LockKey(ctx context.Context, key string) error {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	if !ok {
		return fmt.Errorf("advisory lock on %q requires a transaction", key)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key); err != nil {
		return fmt.Errorf("failed to lock %q: %w", key, err)
	}
	return nil
}

// KeyLocker serializes check-then-act sequences on a natural key.
type KeyLocker interface {
	// WithKeyLock runs fn while holding an exclusive lock on key. All
	// repository writes made with the ctx passed to fn commit or roll back
	// together.
	WithKeyLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type pgKeyLocker struct{}

// NewKeyLocker returns a KeyLocker backed by Postgres advisory locks.
func NewKeyLocker() KeyLocker {
	return pgKeyLocker{}
}

func (pgKeyLocker) WithKeyLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return WithTx(ctx, func(ctx context.Context) error {
		if err := LockKey(ctx, key); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// MemoryKeyLocker is an in-process KeyLocker. It provides no rollback and is
// meant for single-instance use and tests.
type MemoryKeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryKeyLocker creates a MemoryKeyLocker.
func NewMemoryKeyLocker() *MemoryKeyLocker {
	return &MemoryKeyLocker{locks: make(map[string]*keyLock)}
}

var _ KeyLocker = (*MemoryKeyLocker)(nil)

func (l *MemoryKeyLocker) WithKeyLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	defer func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}()

	return fn(ctx)
}
