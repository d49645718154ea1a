package refimpl

import (
	"sync"

	"github.com/certen-mesh/atechain/pkg/mesh/server"
)

// AllowListOpenFlow permits Subscribe against exactly the chain names it
// has been told to allow, rejecting everything else. Mirrors the teacher's
// MemoryKV: a map guarded by a RWMutex, with Allow/Revoke for callers that
// change the allow list at runtime.
type AllowListOpenFlow struct {
	mu      sync.RWMutex
	allowed map[string]bool
}

// NewAllowListOpenFlow returns an AllowListOpenFlow permitting exactly the
// given chain names.
func NewAllowListOpenFlow(names ...string) *AllowListOpenFlow {
	f := &AllowListOpenFlow{allowed: make(map[string]bool, len(names))}
	for _, n := range names {
		f.allowed[n] = true
	}
	return f
}

// Allow adds name to the allow list.
func (f *AllowListOpenFlow) Allow(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowed[name] = true
}

// Revoke removes name from the allow list.
func (f *AllowListOpenFlow) Revoke(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.allowed, name)
}

// Open implements server.OpenFlow.
func (f *AllowListOpenFlow) Open(chainName string) (server.Decision, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.allowed[chainName] {
		return server.Create, nil
	}
	return server.Reject, nil
}
