// Package dio implements the transactional data-access layer: Dao[T] read
// handles and DioMut[T] buffered write sets over a chain.Chain, generalizing
// the teacher's pkg/database/repositories.go "one typed façade per record
// kind over a shared client" idiom with Go generics instead of one
// hand-written repository struct per concrete type.
package dio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/certen-mesh/atechain/pkg/crypto"
)

// LockTable tracks per-key advisory locks held by DioMut transactions.
// Locks are mesh-wide exclusivity markers, not mutexes guarding memory —
// pkg/mesh/server surfaces the same table over the wire (Lock/LockResult/
// Unlock) and releases every lock an owner holds when its session
// disconnects.
type LockTable struct {
	mu      sync.Mutex
	holders map[crypto.PrimaryKey]string
	waiters map[crypto.PrimaryKey][]chan struct{}
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{
		holders: make(map[crypto.PrimaryKey]string),
		waiters: make(map[crypto.PrimaryKey][]chan struct{}),
	}
}

// TryLock acquires key for owner without blocking, returning false if
// another owner already holds it.
func (t *LockTable) TryLock(key crypto.PrimaryKey, owner string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if holder, ok := t.holders[key]; ok && holder != owner {
		return false
	}
	t.holders[key] = owner
	return true
}

// Lock blocks until key is acquired for owner or ctx is done.
func (t *LockTable) Lock(ctx context.Context, key crypto.PrimaryKey, owner string) error {
	for {
		t.mu.Lock()
		holder, held := t.holders[key]
		if !held || holder == owner {
			t.holders[key] = owner
			t.mu.Unlock()
			return nil
		}
		wait := make(chan struct{})
		t.waiters[key] = append(t.waiters[key], wait)
		t.mu.Unlock()

		select {
		case <-wait:
			// Re-check: the key may have been grabbed by another waiter
			// between the signal and our next loop iteration.
		case <-ctx.Done():
			return fmt.Errorf("dio: lock %s: %w", key, ctx.Err())
		case <-time.After(50 * time.Millisecond):
			// Bounded poll as a backstop against a missed wake-up.
		}
	}
}

// Unlock releases key if owner currently holds it.
func (t *LockTable) Unlock(key crypto.PrimaryKey, owner string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if holder, ok := t.holders[key]; !ok || holder != owner {
		return fmt.Errorf("dio: unlock %s: not held by %s", key, owner)
	}
	delete(t.holders, key)
	t.wakeLocked(key)
	return nil
}

// UnlockAll releases every key owner holds — the disconnect-triggered
// release the spec calls for when a mesh session drops.
func (t *LockTable) UnlockAll(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, holder := range t.holders {
		if holder == owner {
			delete(t.holders, key)
			t.wakeLocked(key)
		}
	}
}

// Holder returns the current owner of key, if locked.
func (t *LockTable) Holder(key crypto.PrimaryKey) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	owner, ok := t.holders[key]
	return owner, ok
}

func (t *LockTable) wakeLocked(key crypto.PrimaryKey) {
	for _, w := range t.waiters[key] {
		close(w)
	}
	delete(t.waiters, key)
}
