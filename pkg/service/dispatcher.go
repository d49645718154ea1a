package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/certen-mesh/atechain/pkg/chain"
	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/dio"
	"github.com/certen-mesh/atechain/pkg/event"
)

// ErrNoInvoker is returned when a request event's Type tag matches no
// registered ServiceInvoker.
var ErrNoInvoker = errors.New("service: no invoker registered for request type")

// ErrRequestLocked is returned when another dispatcher (or client) already
// holds the advisory lock on the request row.
var ErrRequestLocked = errors.New("service: request row is locked")

// dispatcherOwner is the fixed lock-table identity a Dispatcher uses for
// every row it locks; one dispatcher instance processes one request at a
// time per row, so a shared owner string is sufficient.
const dispatcherOwner = "service-dispatcher"

// Dispatcher routes Type-tagged request events on one chain to registered
// invokers.
type Dispatcher struct {
	chain *chain.Chain
	locks *dio.LockTable

	mu       sync.RWMutex
	invokers map[string]ServiceInvoker

	logger *log.Logger
}

// NewDispatcher creates a dispatcher bound to one chain. locks is the
// advisory lock table request rows are locked in; a row another owner
// already holds there is not dispatched.
func NewDispatcher(c *chain.Chain, locks *dio.LockTable, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[ServiceDispatcher] ", log.LstdFlags)
	}
	return &Dispatcher{
		chain:    c,
		locks:    locks,
		invokers: make(map[string]ServiceInvoker),
		logger:   logger,
	}
}

// Register binds inv to its RequestTypeName.
func (d *Dispatcher) Register(inv ServiceInvoker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invokers[inv.RequestTypeName()] = inv
}

// Dispatch processes the request row stored at requestKey: it locks the
// row, invokes the matching handler, writes a reply row parented to the
// request via Reply(request_key), then tombstones the request. Returns
// ErrNoInvoker if no Type-tagged request is present, or if the Type names
// an unregistered invoker.
func (d *Dispatcher) Dispatch(ctx context.Context, requestKey crypto.PrimaryKey) (crypto.PrimaryKey, error) {
	req, err := d.chain.Load(ctx, requestKey)
	if err != nil {
		return crypto.PrimaryKey{}, fmt.Errorf("service: load request %s: %w", requestKey, err)
	}

	typeName, ok := req.Meta.TypeName()
	if !ok {
		return crypto.PrimaryKey{}, ErrNoInvoker
	}

	d.mu.RLock()
	inv, ok := d.invokers[typeName]
	d.mu.RUnlock()
	if !ok {
		return crypto.PrimaryKey{}, fmt.Errorf("%w: %q", ErrNoInvoker, typeName)
	}

	if !d.locks.TryLock(requestKey, dispatcherOwner) {
		return crypto.PrimaryKey{}, ErrRequestLocked
	}
	defer d.locks.Unlock(requestKey, dispatcherOwner)

	respBytes, invokeErr := inv.Invoke(ctx, req.Data)

	replyKey, err := crypto.NewPrimaryKey()
	if err != nil {
		return crypto.PrimaryKey{}, err
	}

	replyType := inv.ResponseTypeName()
	payload := respBytes
	if invokeErr != nil {
		replyType = inv.ErrorTypeName()
		payload = []byte(invokeErr.Error())
	}

	replyMeta := event.Metadata{Core: []event.Entry{
		event.EntryData(replyKey),
		event.EntryReply(requestKey),
		event.EntryType(replyType),
	}}
	if _, _, err := d.chain.Feed(ctx, event.New(replyMeta, payload)); err != nil {
		return crypto.PrimaryKey{}, fmt.Errorf("service: write reply: %w", err)
	}

	tombstoneMeta := event.Metadata{Core: []event.Entry{event.EntryTombstone(requestKey)}}
	if _, _, err := d.chain.Feed(ctx, event.New(tombstoneMeta, nil)); err != nil {
		return replyKey, fmt.Errorf("service: tombstone request: %w", err)
	}

	return replyKey, nil
}
