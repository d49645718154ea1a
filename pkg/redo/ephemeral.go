package redo

import (
	"context"
	"sync"
)

// Ephemeral is the in-memory redo-log backend: an append-only vector of
// records with no durability guarantee, used for tests and for chains that
// never need to survive a process restart.
type Ephemeral struct {
	mu      sync.RWMutex
	records [][]byte
	header  []byte
	closed  bool
}

// NewEphemeral creates an empty in-memory log.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{}
}

func (e *Ephemeral) Append(_ context.Context, eventBytes []byte) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	cp := append([]byte(nil), eventBytes...)
	offset := int64(len(e.records))
	e.records = append(e.records, cp)
	return offset, nil
}

func (e *Ephemeral) Read(_ context.Context, offset int64) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if offset < 0 || offset >= int64(len(e.records)) {
		return nil, ErrOffsetBounds
	}
	return append([]byte(nil), e.records[offset]...), nil
}

func (e *Ephemeral) Count() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return int64(len(e.records))
}

func (e *Ephemeral) Flush() error { return nil }

func (e *Ephemeral) Backup(includeActive bool) error { return nil }

func (e *Ephemeral) Rotate() error { return nil }

func (e *Ephemeral) Header(which uint32) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]byte(nil), e.header...), nil
}

func (e *Ephemeral) SetHeader(blob []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.header = append([]byte(nil), blob...)
	return nil
}

func (e *Ephemeral) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Replay feeds every stored record, in order, to sink — used by callers
// that want ephemeral logs to behave like a freshly-opened durable log for
// index rebuilding.
func (e *Ephemeral) Replay(sink Sink) error {
	e.mu.RLock()
	records := make([][]byte, len(e.records))
	copy(records, e.records)
	e.mu.RUnlock()

	for i, b := range records {
		if err := sink.Feed(Record{Offset: int64(i), Bytes: b}); err != nil {
			return err
		}
	}
	return nil
}

var _ Log = (*Ephemeral)(nil)
