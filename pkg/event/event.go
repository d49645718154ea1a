package event

import (
	"encoding/json"
	"fmt"

	"github.com/certen-mesh/atechain/pkg/crypto/hash"
)

// Event is the immutable unit appended to the redo-log: a Metadata header
// plus an optional payload.
type Event struct {
	Meta Metadata `json:"meta"`
	Data []byte   `json:"data,omitempty"`
}

// New builds an Event from a metadata header and optional payload.
func New(meta Metadata, data []byte) Event {
	return Event{Meta: meta, Data: data}
}

// HasPayload reports whether the event carries payload bytes. An event with
// a Data entry but no payload is a header-only attestation.
func (e Event) HasPayload() bool {
	return e.Data != nil
}

// MetaHash returns the content hash of the metadata header alone.
func (e Event) MetaHash() (hash.Hash, error) {
	return e.Meta.Hash()
}

// UnsignedHash computes the event's identity hash as Hash does, but with
// any Signature entries stripped from the metadata first. This is the hash
// a Signature's Covers field references: a signature cannot cover a hash
// that already includes itself, so signing always happens against the
// event as it stood immediately before the signature was attached.
func (e Event) UnsignedHash() (hash.Hash, error) {
	stripped := e
	stripped.Meta = e.Meta.withoutSignatures()
	return stripped.Hash()
}

// DataHash returns the content hash of the payload, and whether a payload is
// present.
func (e Event) DataHash() (hash.Hash, bool) {
	if !e.HasPayload() {
		return hash.Hash{}, false
	}
	return hash.Sum(e.Data), true
}

// Hash computes the event's identity hash: H(meta_hash || data_hash) when a
// payload is present, or meta_hash alone otherwise.
func (e Event) Hash() (hash.Hash, error) {
	metaHash, err := e.MetaHash()
	if err != nil {
		return hash.Hash{}, err
	}
	dataHash, ok := e.DataHash()
	if !ok {
		return metaHash, nil
	}
	return hash.Sum(metaHash[:], dataHash[:]), nil
}

// Marshal serializes the event to its canonical wire form.
func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal parses the canonical wire form produced by Marshal.
func Unmarshal(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("event: unmarshal: %w", err)
	}
	return e, nil
}

// Equal reports whether two events are identical: same metadata (after
// canonicalization) and same payload bytes.
func (e Event) Equal(other Event) bool {
	ah, err1 := e.Hash()
	bh, err2 := other.Hash()
	if err1 != nil || err2 != nil {
		return false
	}
	return ah == bh && string(e.Data) == string(other.Data)
}
