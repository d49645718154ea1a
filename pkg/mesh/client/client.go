// Package client implements the dialing half of the mesh: subscribing to a
// remote chain, submitting writes and waiting for their confirmation, and
// requesting/releasing advisory locks. Generalizes the teacher's
// pkg/batch/attestation_broadcaster.go "broadcast to peers, collect
// confirmations" loop into the mesh's Events/Confirmed write path.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
	"github.com/certen-mesh/atechain/pkg/event"
	"github.com/certen-mesh/atechain/pkg/mesh"
)

// ErrNotThisRoot is returned by Subscribe when the remote server does not
// own the requested chain.
var ErrNotThisRoot = errors.New("mesh/client: server does not own this chain")

// ErrTimeout is returned by Feed/Lock when no response arrives within
// defaultTimeout.
var ErrTimeout = errors.New("mesh/client: timed out waiting for response")

// defaultTimeout bounds how long Feed/Lock wait for their server reply.
const defaultTimeout = 10 * time.Second

// Subscription delivers the historical-then-live event stream for one
// subscribed chain. EndOfHistory closes once the catch-up replay has fully
// arrived; Events keeps delivering events forwarded after that point for as
// long as the connection stays open.
type Subscription struct {
	Events       chan event.Event
	EndOfHistory chan struct{}
}

type commitResult struct {
	err error
}

// Client drives one mesh connection: a single background goroutine reads
// every incoming Message and dispatches it either to the active
// Subscription's Events channel or to whichever Feed/Lock call is waiting
// on that commit id or key, mirroring the inbox-dispatch model the wire
// transport layer uses for its own per-connection read loop.
type Client struct {
	conn mesh.Conn

	mu            sync.Mutex
	pendingCommit map[crypto.PrimaryKey]chan commitResult
	pendingLock   map[crypto.PrimaryKey]chan bool
	sub           *Subscription
}

// New wraps an already hello'd, already encrypted connection.
func New(conn mesh.Conn) *Client {
	return &Client{
		conn:          conn,
		pendingCommit: make(map[crypto.PrimaryKey]chan commitResult),
		pendingLock:   make(map[crypto.PrimaryKey]chan bool),
	}
}

// Subscribe attaches to chainKey on the remote server, optionally resuming
// from the first of sample the server's log recognizes. It blocks until
// StartOfHistory arrives (or the server answers NotThisRoot), then returns
// a Subscription fed by a background read loop for the rest of the
// connection's lifetime.
func (c *Client) Subscribe(chainKey string, sample []hash.Hash) (*Subscription, error) {
	if err := c.conn.Send(mesh.Subscribe(chainKey, sample)); err != nil {
		return nil, err
	}
	first, err := c.conn.Receive()
	if err != nil {
		return nil, err
	}
	switch first.Kind {
	case mesh.KindNotThisRoot:
		return nil, ErrNotThisRoot
	case mesh.KindStartOfHistory:
	default:
		return nil, fmt.Errorf("mesh/client: unexpected message kind %v waiting for StartOfHistory", first.Kind)
	}

	sub := &Subscription{
		Events:       make(chan event.Event, 1024),
		EndOfHistory: make(chan struct{}),
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go c.readLoop(sub)
	return sub, nil
}

func (c *Client) readLoop(sub *Subscription) {
	defer close(sub.Events)
	endClosed := false

	for {
		msg, err := c.conn.Receive()
		if err != nil {
			return
		}

		switch msg.Kind {
		case mesh.KindEvents:
			evts, err := msg.DecodeEvents()
			if err != nil {
				continue
			}
			for _, e := range evts {
				sub.Events <- e
			}
		case mesh.KindEndOfHistory:
			if !endClosed {
				close(sub.EndOfHistory)
				endClosed = true
			}
		case mesh.KindConfirmed:
			c.resolveCommit(msg, nil)
		case mesh.KindCommitError:
			c.resolveCommit(msg, errors.New(msg.Err))
		case mesh.KindLockResult:
			c.resolveLock(msg)
		case mesh.KindFatalTerminate:
			return
		}
	}
}

func (c *Client) resolveCommit(msg mesh.Message, err error) {
	if msg.CommitID == nil {
		return
	}
	c.mu.Lock()
	ch, ok := c.pendingCommit[*msg.CommitID]
	c.mu.Unlock()
	if ok {
		ch <- commitResult{err: err}
	}
}

func (c *Client) resolveLock(msg mesh.Message) {
	if msg.Key == nil {
		return
	}
	c.mu.Lock()
	ch, ok := c.pendingLock[*msg.Key]
	c.mu.Unlock()
	if ok {
		ch <- msg.IsLocked
	}
}

// Feed submits evts under commitID and blocks for the server's
// Confirmed/CommitError reply. Requires Subscribe to already be running —
// responses are dispatched by its read loop.
func (c *Client) Feed(commitID crypto.PrimaryKey, evts []event.Event) error {
	ch := make(chan commitResult, 1)
	c.mu.Lock()
	c.pendingCommit[commitID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pendingCommit, commitID)
		c.mu.Unlock()
	}()

	msg, err := mesh.Events(&commitID, evts)
	if err != nil {
		return err
	}
	if err := c.conn.Send(msg); err != nil {
		return err
	}

	select {
	case r := <-ch:
		return r.err
	case <-time.After(defaultTimeout):
		return ErrTimeout
	}
}

// Lock requests the advisory lock on key and reports whether it was
// granted. Requires Subscribe to already be running — the LockResult is
// dispatched by its read loop.
func (c *Client) Lock(key crypto.PrimaryKey) (bool, error) {
	ch := make(chan bool, 1)
	c.mu.Lock()
	c.pendingLock[key] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pendingLock, key)
		c.mu.Unlock()
	}()

	if err := c.conn.Send(mesh.Lock(key)); err != nil {
		return false, err
	}

	select {
	case isLocked := <-ch:
		return isLocked, nil
	case <-time.After(defaultTimeout):
		return false, ErrTimeout
	}
}

// Unlock releases a previously granted lock. The server issues no reply.
func (c *Client) Unlock(key crypto.PrimaryKey) error {
	return c.conn.Send(mesh.Unlock(key))
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
