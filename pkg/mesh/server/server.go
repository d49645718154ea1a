// Package server implements the listening half of the mesh: chain
// subscription with historical catch-up, the write path (feed, multicast,
// confirm), and per-session advisory locking with disconnect-triggered
// release. Generalizes the teacher's pkg/batch/peer_manager.go (tracking
// known peers) paired with pkg/batch/consensus_coordinator.go
// (orchestrating multi-party confirmation) into one subscription registry
// per chain.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/certen-mesh/atechain/pkg/chain"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
	"github.com/certen-mesh/atechain/pkg/dio"
	"github.com/certen-mesh/atechain/pkg/event"
	"github.com/certen-mesh/atechain/pkg/mesh"
)

// historyBatchSize bounds how many events one Events catch-up message
// carries, per the mesh subscription spec.
const historyBatchSize = 1000

// forwardBufferSize bounds how many concurrently-arriving events a
// subscriber's forward channel holds before new broadcasts are dropped for
// it; a slow subscriber must not block the writer that fed them.
const forwardBufferSize = 4096

type subscriber struct {
	id      string
	conn    mesh.Conn
	forward chan mesh.Message
}

type chainEntry struct {
	mu          sync.Mutex
	chain       *chain.Chain
	subscribers map[string]*subscriber
}

// Server is one mesh node: a registry of open chains plus the lock table
// shared across every session on this node.
type Server struct {
	mu     sync.Mutex
	chains map[string]*chainEntry
	flow   OpenFlow
	locks  *dio.LockTable
	logger *log.Logger
}

// NewServer creates a mesh server using flow to decide how to handle
// subscribe requests for chains it does not already hold open.
func NewServer(flow OpenFlow, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[MeshServer] ", log.LstdFlags)
	}
	return &Server{
		chains: make(map[string]*chainEntry),
		flow:   flow,
		locks:  dio.NewLockTable(),
		logger: logger,
	}
}

// Logger returns the server's logger, for callers (cmd/meshd) that want
// to report transport-level errors using the same logger HandleConn uses
// internally.
func (s *Server) Logger() *log.Logger { return s.logger }

// Register pre-opens a named chain so subscribers can attach to it
// regardless of what the OpenFlow would otherwise decide.
func (s *Server) Register(name string, c *chain.Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[name] = &chainEntry{chain: c, subscribers: make(map[string]*subscriber)}
}

func (s *Server) entryFor(name string) (*chainEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.chains[name]
	return e, ok
}

func (s *Server) openOrCreate(name string) (*chainEntry, error) {
	if e, ok := s.entryFor(name); ok {
		return e, nil
	}

	decision, err := s.flow.Open(name)
	if err != nil {
		return nil, err
	}
	switch decision {
	case Create:
		c := chain.OpenEphemeral()
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.chains[name]; ok {
			return e, nil
		}
		e := &chainEntry{chain: c, subscribers: make(map[string]*subscriber)}
		s.chains[name] = e
		return e, nil
	default:
		return nil, errNotThisRoot
	}
}

var errNotThisRoot = errors.New("mesh: server does not own this chain")

// HandleConn drives one already-hello'd, already-encrypted connection
// until it closes or ctx is cancelled. Exactly one goroutine should call
// this per connection.
func (s *Server) HandleConn(ctx context.Context, conn mesh.Conn) error {
	sessionID := uuid.NewString()
	var entry *chainEntry
	var sub *subscriber

	defer func() {
		s.locks.UnlockAll(sessionID)
		if entry != nil {
			entry.mu.Lock()
			delete(entry.subscribers, sessionID)
			entry.mu.Unlock()
		}
		if sub != nil {
			close(sub.forward)
		}
	}()

	for {
		msg, err := conn.Receive()
		if err != nil {
			return err
		}

		switch msg.Kind {
		case mesh.KindSubscribe:
			var subErr error
			entry, sub, subErr = s.subscribe(ctx, sessionID, conn, msg)
			if subErr != nil {
				s.logger.Printf("session %s: subscribe to %q failed: %v", sessionID, msg.ChainKey, subErr)
			}
		case mesh.KindEvents:
			if entry == nil {
				if err := conn.Send(mesh.NotYetSubscribed()); err != nil {
					return err
				}
				continue
			}
			s.handleEvents(ctx, sessionID, entry, conn, msg)
		case mesh.KindLock:
			if msg.Key == nil {
				continue
			}
			ok := s.locks.TryLock(*msg.Key, sessionID)
			if err := conn.Send(mesh.LockResult(*msg.Key, ok)); err != nil {
				return err
			}
		case mesh.KindUnlock:
			if msg.Key == nil {
				continue
			}
			if err := s.locks.Unlock(*msg.Key, sessionID); err != nil {
				s.logger.Printf("session %s: unlock %v: %v", sessionID, *msg.Key, err)
			}
		default:
			if err := conn.Send(mesh.NotYetSubscribed()); err != nil {
				return err
			}
		}
	}
}

func (s *Server) subscribe(ctx context.Context, sessionID string, conn mesh.Conn, msg mesh.Message) (*chainEntry, *subscriber, error) {
	entry, err := s.openOrCreate(msg.ChainKey)
	if err != nil {
		if sendErr := conn.Send(mesh.NotThisRoot()); sendErr != nil {
			return nil, nil, sendErr
		}
		return nil, nil, err
	}

	sub := &subscriber{id: sessionID, conn: conn, forward: make(chan mesh.Message, forwardBufferSize)}
	entry.mu.Lock()
	entry.subscribers[sessionID] = sub
	entry.mu.Unlock()

	if err := conn.Send(mesh.StartOfHistory()); err != nil {
		return entry, sub, err
	}
	if err := s.replayHistory(ctx, entry, conn, msg.HistorySample); err != nil {
		return entry, sub, err
	}
	if err := conn.Send(mesh.EndOfHistory()); err != nil {
		return entry, sub, err
	}

	go s.forwardLoop(sub)
	return entry, sub, nil
}

// replayHistory resumes at the first sample hash the timeline contains,
// scanning oldest-to-newest (Open Question (a): prefer wider replay over
// the most recent match), streaming everything after it in batches of up
// to historyBatchSize.
func (s *Server) replayHistory(ctx context.Context, entry *chainEntry, conn mesh.Conn, sample []hash.Hash) error {
	timeline := entry.chain.Index().Timeline()

	resume := 0
	if len(sample) > 0 {
		matched := false
		for i, e := range timeline {
			for _, sh := range sample {
				if e.Hash == sh {
					resume = i + 1
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
	}

	pending := timeline[resume:]
	for len(pending) > 0 {
		n := historyBatchSize
		if n > len(pending) {
			n = len(pending)
		}
		batch := pending[:n]
		pending = pending[n:]

		evts := make([]event.Event, len(batch))
		for i, entryLine := range batch {
			ev, err := entry.chain.ReadAt(ctx, entryLine.Offset)
			if err != nil {
				return fmt.Errorf("mesh: replay read at offset %d: %w", entryLine.Offset, err)
			}
			evts[i] = ev
		}

		msg, err := mesh.Events(nil, evts)
		if err != nil {
			return err
		}
		if err := conn.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) forwardLoop(sub *subscriber) {
	for msg := range sub.forward {
		if err := sub.conn.Send(msg); err != nil {
			return
		}
	}
}

func (s *Server) handleEvents(ctx context.Context, sessionID string, entry *chainEntry, conn mesh.Conn, msg mesh.Message) {
	if msg.CommitID == nil {
		return
	}
	evts, err := msg.DecodeEvents()
	if err != nil {
		_ = conn.Send(mesh.CommitError(*msg.CommitID, err))
		return
	}

	for _, ev := range evts {
		if _, _, err := entry.chain.Feed(ctx, ev); err != nil {
			_ = conn.Send(mesh.CommitError(*msg.CommitID, err))
			return
		}
	}

	_ = conn.Send(mesh.Confirmed(*msg.CommitID))
	s.multicast(entry, sessionID, evts)
}

// multicast forwards newly-applied events to every other subscriber of
// entry. A subscriber whose forward channel is full is skipped rather than
// blocking the writer — a slow reader falls behind, it never stalls a
// commit.
func (s *Server) multicast(entry *chainEntry, fromSessionID string, evts []event.Event) {
	msg, err := mesh.Events(nil, evts)
	if err != nil {
		s.logger.Printf("multicast: marshal events: %v", err)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	for id, sub := range entry.subscribers {
		if id == fromSessionID {
			continue
		}
		select {
		case sub.forward <- msg:
		default:
			s.logger.Printf("session %s: forward buffer full, dropping broadcast", id)
		}
	}
}
