// Package store is the keyed state abstraction shared by the verification ledger
// and the call session orchestrator. Every backend offers per-key atomic
// compare-and-swap so read-modify-write cycles on the same key serialize without
// a global lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("key not found")
	// ErrConflict is returned by Update when the key kept changing under it.
	ErrConflict = errors.New("too many concurrent updates")
)

// KV is a byte-valued key store with atomic conditional writes.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CompareAndSwap writes value only if the current value equals old.
	// A nil old means the key must be absent.
	CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error)
	// CompareAndDelete removes the key only if its current value equals old.
	CompareAndDelete(ctx context.Context, key string, old []byte) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Sets holds named string sets.
type Sets interface {
	AddMember(ctx context.Context, set, member string) error
	RemoveMember(ctx context.Context, set, member string) error
	IsMember(ctx context.Context, set, member string) (bool, error)
	Members(ctx context.Context, set string) ([]string, error)
}

// Backend is what the repositories are built on.
type Backend interface {
	KV
	Sets
	Close() error
}

// Op is the write Update commits after running an UpdateFunc.
type Op int

const (
	OpNone Op = iota
	OpPut
	OpDelete
)

// UpdateFunc inspects the current value and decides what to commit. The
// returned error is handed back to the caller of Update after the write
// commits, so a function may both delete a key and report why.
type UpdateFunc func(current []byte, found bool) (next []byte, op Op, err error)

const maxUpdateRetries = 16

// Update runs an optimistic read-modify-write on key. fn may be called more
// than once if a concurrent writer changes the key in between.
func Update(ctx context.Context, kv KV, key string, ttl time.Duration, fn UpdateFunc) error {
	for i := 0; i < maxUpdateRetries; i++ {
		current, err := kv.Get(ctx, key)
		found := true
		if errors.Is(err, ErrNotFound) {
			current, found = nil, false
		} else if err != nil {
			return err
		}

		next, op, result := fn(current, found)

		var committed bool
		switch op {
		case OpNone:
			return result
		case OpPut:
			committed, err = kv.CompareAndSwap(ctx, key, current, next, ttl)
		case OpDelete:
			if !found {
				return result
			}
			committed, err = kv.CompareAndDelete(ctx, key, current)
		default:
			return fmt.Errorf("unknown update op %d", op)
		}
		if err != nil {
			return err
		}
		if committed {
			return result
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("update %s: %w", key, ErrConflict)
}
