package dio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/certen-mesh/atechain/pkg/chain"
	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
	"github.com/certen-mesh/atechain/pkg/event"
	"github.com/certen-mesh/atechain/pkg/session"
)

// TransactionScope controls how long a DioMut transaction holds the locks
// it acquires.
type TransactionScope int

const (
	// ScopeNone takes no locks at all; concurrent writers may race, with
	// the chain's last-write-wins semantics deciding the outcome.
	ScopeNone TransactionScope = iota
	// ScopeLocal holds each key's lock only for the duration of Commit,
	// releasing immediately afterward.
	ScopeLocal
	// ScopeFull holds every acquired lock until the caller explicitly
	// unlocks it (or disconnects), spanning possibly many commits.
	ScopeFull
)

// Dao is a read-only, typed handle onto one primary key.
type Dao[T any] struct {
	chain *chain.Chain
	key   crypto.PrimaryKey
}

// NewDao creates a read handle for key.
func NewDao[T any](c *chain.Chain, key crypto.PrimaryKey) *Dao[T] {
	return &Dao[T]{chain: c, key: key}
}

// Key returns the primary key this handle reads.
func (d *Dao[T]) Key() crypto.PrimaryKey { return d.key }

// Load decodes the current value stored at this handle's key.
func (d *Dao[T]) Load(ctx context.Context) (T, error) {
	var zero T
	ev, err := d.chain.Load(ctx, d.key)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(ev.Data, &v); err != nil {
		return zero, fmt.Errorf("dio: decode %s: %w", d.key, err)
	}
	return v, nil
}

// Exists reports whether this handle's key currently has a live value.
func (d *Dao[T]) Exists() bool {
	_, ok := d.chain.Index().Lookup(d.key)
	return ok
}

type opKind int

const (
	opStore opKind = iota
	opDelete
)

type pendingOp[T any] struct {
	kind   opKind
	key    crypto.PrimaryKey
	value  T
	parent *crypto.PrimaryKey
	coll   event.MetaCollection
}

// DioMut is a buffered, typed write set: Store/Delete/Push accumulate
// operations that Commit applies to the chain in one pass, after acquiring
// whatever locks Scope calls for. Nothing is written until Commit runs.
type DioMut[T any] struct {
	mu      sync.Mutex
	chain   *chain.Chain
	locks   *LockTable
	owner   string
	scope   TransactionScope
	session *session.Session

	pending    []pendingOp[T]
	lockedKeys map[crypto.PrimaryKey]bool

	committed bool
	cancelled bool
}

// NewDioMut creates an empty write set. owner identifies the lock holder
// (a session or connection id) used for mesh-wide exclusivity bookkeeping.
func NewDioMut[T any](c *chain.Chain, locks *LockTable, owner string, scope TransactionScope) *DioMut[T] {
	return &DioMut[T]{
		chain:      c,
		locks:      locks,
		owner:      owner,
		scope:      scope,
		lockedKeys: make(map[crypto.PrimaryKey]bool),
	}
}

// WithSession attaches the signing identity this transaction's events are
// committed under: every event Commit feeds to the chain is Falcon-signed
// with s's UserKeys before being applied, so a chain with a policy
// Validator can resolve AllowsWrite against the signer. A DioMut with no
// session attached commits unsigned events, unchanged from before.
func (d *DioMut[T]) WithSession(s *session.Session) *DioMut[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = s
	return d
}

// Store buffers an upsert of value at key.
func (d *DioMut[T]) Store(key crypto.PrimaryKey, value T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, pendingOp[T]{kind: opStore, key: key, value: value})
}

// Push buffers an upsert of value at key, filing it under parent in the
// named tree collection.
func (d *DioMut[T]) Push(parent crypto.PrimaryKey, collection event.MetaCollection, key crypto.PrimaryKey, value T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := parent
	d.pending = append(d.pending, pendingOp[T]{kind: opStore, key: key, value: value, parent: &p, coll: collection})
}

// Delete buffers a tombstone of key.
func (d *DioMut[T]) Delete(key crypto.PrimaryKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, pendingOp[T]{kind: opDelete, key: key})
}

// Load reads key's current committed value, bypassing this transaction's
// own uncommitted buffer.
func (d *DioMut[T]) Load(ctx context.Context, key crypto.PrimaryKey) (T, error) {
	return NewDao[T](d.chain, key).Load(ctx)
}

// TryLock acquires key without blocking. Under ScopeNone this always
// succeeds without contacting the lock table.
func (d *DioMut[T]) TryLock(key crypto.PrimaryKey) bool {
	if d.scope == ScopeNone {
		return true
	}
	ok := d.locks.TryLock(key, d.owner)
	if ok {
		d.mu.Lock()
		d.lockedKeys[key] = true
		d.mu.Unlock()
	}
	return ok
}

// Lock blocks until key is acquired or ctx is done. Under ScopeNone this
// is a no-op.
func (d *DioMut[T]) Lock(ctx context.Context, key crypto.PrimaryKey) error {
	if d.scope == ScopeNone {
		return nil
	}
	if err := d.locks.Lock(ctx, key, d.owner); err != nil {
		return err
	}
	d.mu.Lock()
	d.lockedKeys[key] = true
	d.mu.Unlock()
	return nil
}

// Commit applies every buffered operation to the chain in order. Under
// ScopeLocal, every key touched is locked for the duration of Commit and
// released immediately after; under ScopeFull, locks acquired via Lock/
// TryLock (or implicitly taken here) are left held for the caller to
// release explicitly. A failure partway through leaves prior operations
// applied — callers that need all-or-nothing semantics across keys should
// use a single key per transaction, matching the chain's per-record
// atomicity.
func (d *DioMut[T]) Commit(ctx context.Context) error {
	d.mu.Lock()
	ops := append([]pendingOp[T](nil), d.pending...)
	scope := d.scope
	d.mu.Unlock()

	if scope != ScopeNone {
		for _, op := range ops {
			if err := d.Lock(ctx, op.key); err != nil {
				return err
			}
		}
	}
	if scope == ScopeLocal {
		defer func() {
			d.mu.Lock()
			keys := make([]crypto.PrimaryKey, 0, len(d.lockedKeys))
			for k := range d.lockedKeys {
				keys = append(keys, k)
			}
			d.lockedKeys = make(map[crypto.PrimaryKey]bool)
			d.mu.Unlock()
			for _, k := range keys {
				d.locks.Unlock(k, d.owner)
			}
		}()
	}

	for _, op := range ops {
		if err := d.applyOne(ctx, op); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.committed = true
	d.pending = nil
	d.mu.Unlock()
	return nil
}

func (d *DioMut[T]) applyOne(ctx context.Context, op pendingOp[T]) error {
	switch op.kind {
	case opDelete:
		ev := event.New(event.Metadata{Core: []event.Entry{event.EntryTombstone(op.key)}}, nil)
		ev, err := d.sign(ev)
		if err != nil {
			return err
		}
		_, _, err = d.chain.Feed(ctx, ev)
		return err
	case opStore:
		b, err := json.Marshal(op.value)
		if err != nil {
			return fmt.Errorf("dio: encode %s: %w", op.key, err)
		}
		entries := []event.Entry{event.EntryData(op.key)}
		if op.parent != nil {
			entries = append(entries, event.EntryTree(*op.parent, op.coll))
		}
		ev := event.New(event.Metadata{Core: entries}, b)
		ev, err = d.sign(ev)
		if err != nil {
			return err
		}
		_, _, err = d.chain.Feed(ctx, ev)
		return err
	default:
		return fmt.Errorf("dio: unknown operation kind %d", op.kind)
	}
}

// sign attaches a Signature entry covering ev's pre-signature hash under
// this transaction's session UserKeys. An op with no session attached (or
// a session with no write key loaded) passes ev through unsigned.
func (d *DioMut[T]) sign(ev event.Event) (event.Event, error) {
	if d.session == nil || !d.session.UserKeys.HasWrite() {
		return ev, nil
	}
	h, err := ev.UnsignedHash()
	if err != nil {
		return event.Event{}, fmt.Errorf("dio: hash event for signing: %w", err)
	}
	sigBytes, err := d.session.UserKeys.WritePrivate.Sign(h[:])
	if err != nil {
		return event.Event{}, fmt.Errorf("dio: sign event: %w", err)
	}
	ev.Meta.Core = append(ev.Meta.Core, event.EntrySignature(event.Signature{
		Covers:    []hash.Hash{h},
		PublicKey: d.session.UserKeys.WritePublic.Bytes(),
		Bytes:     sigBytes,
	}))
	return ev, nil
}

// Cancel discards every buffered operation and releases any locks this
// transaction holds.
func (d *DioMut[T]) Cancel() {
	d.mu.Lock()
	keys := make([]crypto.PrimaryKey, 0, len(d.lockedKeys))
	for k := range d.lockedKeys {
		keys = append(keys, k)
	}
	d.lockedKeys = make(map[crypto.PrimaryKey]bool)
	d.pending = nil
	d.cancelled = true
	d.mu.Unlock()

	for _, k := range keys {
		d.locks.Unlock(k, d.owner)
	}
}

// AutoCancel returns a function suitable for defer: it cancels the
// transaction unless Commit already ran, the Go equivalent of the spec's
// drop-triggered auto_cancel.
func (d *DioMut[T]) AutoCancel() func() {
	return func() {
		d.mu.Lock()
		done := d.committed || d.cancelled
		d.mu.Unlock()
		if !done {
			d.Cancel()
		}
	}
}
