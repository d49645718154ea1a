// Package refimpl collects small in-memory reference implementations of the
// interfaces pkg/mesh/server and pkg/service expose to callers — an
// OpenFlow and a ServiceInvoker — for use in tests and as examples of
// implementing those interfaces; cmd/meshd and cmd/meshctl do not import
// this package. Mirrors the teacher's main.go MemoryKV: a
// map guarded by a RWMutex, with no persistence of its own.
package refimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/certen-mesh/atechain/pkg/comms"
)

// KVRequest is the request payload KVInvoker understands.
type KVRequest struct {
	Op    string `json:"op"` // "get" or "set"
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// KVResponse is the reply payload KVInvoker produces.
type KVResponse struct {
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// KVInvoker is a ServiceInvoker backed by a plain in-memory map: a
// minimal, dependency-free handler tests can register without standing up
// a real backing store.
type KVInvoker struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewKVInvoker returns an empty KVInvoker.
func NewKVInvoker() *KVInvoker {
	return &KVInvoker{store: make(map[string]string)}
}

func (*KVInvoker) RequestTypeName() string      { return "refimpl.kv.request" }
func (*KVInvoker) ResponseTypeName() string     { return "refimpl.kv.response" }
func (*KVInvoker) ErrorTypeName() string        { return "refimpl.kv.error" }
func (*KVInvoker) DataFormat() comms.WireFormat { return comms.WireJSON }

// Invoke decodes a KVRequest, applies it, and encodes the KVResponse.
func (k *KVInvoker) Invoke(_ context.Context, request []byte) ([]byte, error) {
	var req KVRequest
	if err := json.Unmarshal(request, &req); err != nil {
		return nil, fmt.Errorf("refimpl: decode request: %w", err)
	}

	switch req.Op {
	case "get":
		k.mu.RLock()
		value, found := k.store[req.Key]
		k.mu.RUnlock()
		return json.Marshal(KVResponse{Value: value, Found: found})
	case "set":
		k.mu.Lock()
		k.store[req.Key] = req.Value
		k.mu.Unlock()
		return json.Marshal(KVResponse{Value: req.Value, Found: true})
	default:
		return nil, fmt.Errorf("refimpl: unknown op %q", req.Op)
	}
}
