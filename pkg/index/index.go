// Package index maintains the in-memory indexes the chain-of-trust builds
// by replaying the redo-log: a primary-key-to-event-hash map and a
// parent-to-children secondary multimap, generalizing the teacher's
// accumulate-lite-client-2/liteclient/cache.AccountCache single-mutex,
// multi-map bookkeeping pattern to the spec's event-sourced index.
package index

import (
	"sync"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
	"github.com/certen-mesh/atechain/pkg/event"
)

// Entry records one replayed event's position on the monotonic timeline.
type Entry struct {
	Hash   hash.Hash
	Key    crypto.PrimaryKey
	Offset int64
}

// childKey identifies one multimap<MetaCollection, PrimaryKey> bucket: a
// parent key's children are partitioned by the named tree collection they
// were filed under, so two different collections under the same parent
// never merge into one list.
type childKey struct {
	parent     crypto.PrimaryKey
	collection event.MetaCollection
}

// Index is the single-writer, multi-reader in-memory index built by
// replaying a chain's events in offset order.
type Index struct {
	mu sync.RWMutex

	primary    map[crypto.PrimaryKey]hash.Hash
	offsets    map[crypto.PrimaryKey]int64
	tombstoned map[crypto.PrimaryKey]bool

	children map[childKey][]crypto.PrimaryKey
	parentOf map[crypto.PrimaryKey]childKey

	authorizations map[crypto.PrimaryKey]event.Authorization

	timeline []Entry
}

// New creates an empty index.
func New() *Index {
	return &Index{
		primary:        make(map[crypto.PrimaryKey]hash.Hash),
		offsets:        make(map[crypto.PrimaryKey]int64),
		tombstoned:     make(map[crypto.PrimaryKey]bool),
		children:       make(map[childKey][]crypto.PrimaryKey),
		parentOf:       make(map[crypto.PrimaryKey]childKey),
		authorizations: make(map[crypto.PrimaryKey]event.Authorization),
	}
}

// Feed applies one event to the index at the given log offset. Tombstones
// are applied before inserts: a tombstone entry removes the primary-map
// entry and any tree edge for its target key in the same call a later
// write would otherwise race with. A Data entry with no payload (a
// header-only metadata update) never touches the primary map — only an
// entry carrying a payload establishes or revives a primary-key mapping.
func (x *Index) Feed(ev event.Event, offset int64) error {
	h, err := ev.Hash()
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if tk, ok := ev.Meta.TombstoneKey(); ok {
		x.removeKeyLocked(tk)
		x.tombstoned[tk] = true
	}

	if dk, ok := ev.Meta.DataKey(); ok && ev.HasPayload() {
		x.primary[dk] = h
		x.offsets[dk] = offset
		delete(x.tombstoned, dk)

		if parent, collection, ok := ev.Meta.Tree(); ok {
			x.addChildLocked(parent, collection, dk)
		}
		if auth, ok := ev.Meta.GetAuthorization(); ok {
			x.authorizations[dk] = auth
		}
	}

	x.timeline = append(x.timeline, Entry{Hash: h, Key: x.timelineKey(ev), Offset: offset})
	return nil
}

func (x *Index) timelineKey(ev event.Event) crypto.PrimaryKey {
	if dk, ok := ev.Meta.DataKey(); ok {
		return dk
	}
	if tk, ok := ev.Meta.TombstoneKey(); ok {
		return tk
	}
	return crypto.PrimaryKey{}
}

func (x *Index) addChildLocked(parent crypto.PrimaryKey, collection event.MetaCollection, child crypto.PrimaryKey) {
	ck := childKey{parent: parent, collection: collection}
	if prev, ok := x.parentOf[child]; ok && prev != ck {
		x.removeChildLocked(prev, child)
	}
	if !containsKey(x.children[ck], child) {
		x.children[ck] = append(x.children[ck], child)
	}
	x.parentOf[child] = ck
}

func (x *Index) removeChildLocked(ck childKey, child crypto.PrimaryKey) {
	siblings := x.children[ck]
	for i, k := range siblings {
		if k == child {
			x.children[ck] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(x.children[ck]) == 0 {
		delete(x.children, ck)
	}
}

func (x *Index) removeKeyLocked(key crypto.PrimaryKey) {
	delete(x.primary, key)
	delete(x.offsets, key)
	delete(x.authorizations, key)
	if ck, ok := x.parentOf[key]; ok {
		x.removeChildLocked(ck, key)
		delete(x.parentOf, key)
	}
}

func containsKey(keys []crypto.PrimaryKey, k crypto.PrimaryKey) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}

// Lookup returns the most recent event hash stored against key.
func (x *Index) Lookup(key crypto.PrimaryKey) (hash.Hash, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	h, ok := x.primary[key]
	return h, ok
}

// Offset returns the log offset of the event currently stored against key,
// used to fetch its payload back out of the redo-log.
func (x *Index) Offset(key crypto.PrimaryKey) (int64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	off, ok := x.offsets[key]
	return off, ok
}

// IsTombstoned reports whether key has been deleted and not since revived
// by a later payload-carrying write.
func (x *Index) IsTombstoned(key crypto.PrimaryKey) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.tombstoned[key]
}

// Children returns the keys filed under parent in the named tree
// collection, in insertion order. The secondary structure is a
// multimap<MetaCollection, PrimaryKey>: a parent with children in two
// different collections keeps two independent lists, so asking for one
// collection never returns keys filed under another. The returned slice is
// a copy safe for the caller to retain.
func (x *Index) Children(parent crypto.PrimaryKey, collection event.MetaCollection) []crypto.PrimaryKey {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]crypto.PrimaryKey(nil), x.children[childKey{parent: parent, collection: collection}]...)
}

// Authorization returns the most recently replayed Authorization entry
// filed against key, used to resolve the authorization in effect for a
// later event that carries none of its own.
func (x *Index) Authorization(key crypto.PrimaryKey) (event.Authorization, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	a, ok := x.authorizations[key]
	return a, ok
}

// Count returns the number of live (non-tombstoned) primary-key entries.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.primary)
}

// Timeline returns every replayed entry in offset order. The returned
// slice is a copy safe for the caller to retain.
func (x *Index) Timeline() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]Entry(nil), x.timeline...)
}
