package mesh

import (
	"fmt"

	"github.com/certen-mesh/atechain/pkg/comms"
	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
	"github.com/certen-mesh/atechain/pkg/event"
)

// Kind discriminates the mesh message variants exchanged over the
// encrypted stream once a hello exchange has completed.
type Kind string

const (
	KindSubscribe        Kind = "subscribe"
	KindNotThisRoot      Kind = "not_this_root"
	KindStartOfHistory   Kind = "start_of_history"
	KindEndOfHistory     Kind = "end_of_history"
	KindEvents           Kind = "events"
	KindConfirmed        Kind = "confirmed"
	KindCommitError      Kind = "commit_error"
	KindLock             Kind = "lock"
	KindLockResult       Kind = "lock_result"
	KindUnlock           Kind = "unlock"
	KindNotYetSubscribed Kind = "not_yet_subscribed"
	KindFatalTerminate   Kind = "fatal_terminate"
)

// Message is the single wire type for every mesh exchange; exactly the
// fields relevant to Kind are populated. One flat tagged struct, the way
// event.Entry tags its Metadata variants, rather than a Go interface per
// kind — the wire format (JSON or MessagePack, chosen during hello) needs
// one concrete type to marshal.
type Message struct {
	Kind Kind `json:"kind"`

	ChainKey      string      `json:"chain_key,omitempty"`
	HistorySample []hash.Hash `json:"history_sample,omitempty"`

	CommitID *crypto.PrimaryKey `json:"commit_id,omitempty"`
	Events   [][]byte           `json:"events,omitempty"`

	Key      *crypto.PrimaryKey `json:"key,omitempty"`
	IsLocked bool               `json:"is_locked,omitempty"`

	Err string `json:"err,omitempty"`
}

func Subscribe(chainKey string, sample []hash.Hash) Message {
	return Message{Kind: KindSubscribe, ChainKey: chainKey, HistorySample: sample}
}

func NotThisRoot() Message { return Message{Kind: KindNotThisRoot} }

func StartOfHistory() Message { return Message{Kind: KindStartOfHistory} }

func EndOfHistory() Message { return Message{Kind: KindEndOfHistory} }

// Events packs a batch of events, optionally tagged with the commit id the
// client used to submit them (nil for server-pushed catch-up/forward
// batches).
func Events(commitID *crypto.PrimaryKey, evts []event.Event) (Message, error) {
	raw := make([][]byte, len(evts))
	for i, e := range evts {
		b, err := e.Marshal()
		if err != nil {
			return Message{}, fmt.Errorf("mesh: marshal event %d: %w", i, err)
		}
		raw[i] = b
	}
	return Message{Kind: KindEvents, CommitID: commitID, Events: raw}, nil
}

// DecodeEvents unpacks the raw event payloads carried by an Events message.
func (m Message) DecodeEvents() ([]event.Event, error) {
	out := make([]event.Event, len(m.Events))
	for i, b := range m.Events {
		e, err := event.Unmarshal(b)
		if err != nil {
			return nil, fmt.Errorf("mesh: unmarshal event %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}

func Confirmed(commitID crypto.PrimaryKey) Message {
	return Message{Kind: KindConfirmed, CommitID: &commitID}
}

func CommitError(commitID crypto.PrimaryKey, err error) Message {
	return Message{Kind: KindCommitError, CommitID: &commitID, Err: err.Error()}
}

func Lock(key crypto.PrimaryKey) Message {
	return Message{Kind: KindLock, Key: &key}
}

func LockResult(key crypto.PrimaryKey, isLocked bool) Message {
	return Message{Kind: KindLockResult, Key: &key, IsLocked: isLocked}
}

func Unlock(key crypto.PrimaryKey) Message {
	return Message{Kind: KindUnlock, Key: &key}
}

func NotYetSubscribed() Message { return Message{Kind: KindNotYetSubscribed} }

func FatalTerminate(err error) Message {
	return Message{Kind: KindFatalTerminate, Err: err.Error()}
}

// Encode serializes m using the negotiated wire format. It does not frame
// the result; StreamConn.Send adds the 32-bit length-prefixed payload frame.
func Encode(format comms.WireFormat, m Message) ([]byte, error) {
	return format.Encode(m)
}

// DecodeMessage parses a wire-format-encoded message body.
func DecodeMessage(format comms.WireFormat, b []byte) (Message, error) {
	var m Message
	if err := format.Decode(b, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}
