// Package comms implements the wire transport: length-prefixed framing,
// the hello handshake and two-halves XOR KEM key exchange, byte-rate
// throttling, the path-prefix router, and the inbox error taxonomy.
// Generalizes the teacher's pkg/server handler-registry idiom (one struct
// per concern, wrapping a service plus a *log.Logger, registered onto a
// mux by path prefix) onto the spec's raw-HTTP / raw-WebSocket / post-hello
// stream registries.
package comms

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	maxHelloFrame   = 1 << 16
	maxPayloadFrame = 1 << 32 / 2 // guard against an absurd length prefix; no real frame needs this much
)

// WriteHelloFrame writes b prefixed with a 16-bit big-endian length, used
// for the hello JSON exchange.
func WriteHelloFrame(w io.Writer, b []byte) error {
	if len(b) > 0xFFFF {
		return fmt.Errorf("comms: hello frame too large: %d bytes", len(b))
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("comms: write hello frame length: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("comms: write hello frame body: %w", err)
	}
	return nil
}

// ReadHelloFrame reads one 16-bit-length-prefixed frame.
func ReadHelloFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("comms: read hello frame length: %w", err)
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("comms: read hello frame body: %w", err)
	}
	return body, nil
}

// WritePayloadFrame writes b prefixed with a 32-bit big-endian length,
// used for every protocol payload frame after the hello exchange.
func WritePayloadFrame(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("comms: write payload frame length: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("comms: write payload frame body: %w", err)
	}
	return nil
}

// ReadPayloadFrame reads one 32-bit-length-prefixed frame.
func ReadPayloadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("comms: read payload frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if uint64(n) > maxPayloadFrame {
		return nil, fmt.Errorf("comms: payload frame length %d exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("comms: read payload frame body: %w", err)
	}
	return body, nil
}

// WriteVersionedPayloadFrame writes a payload frame carrying its protocol
// version as a leading byte ahead of b, the wire-level marker that lets a
// reader tell a frame encoded for a newer protocol version from one its
// own negotiated version can parse.
func WriteVersionedPayloadFrame(w io.Writer, version ProtocolVersion, b []byte) error {
	if version < 0 || version > 0xFF {
		return fmt.Errorf("comms: protocol version %d does not fit a frame version byte", version)
	}
	versioned := make([]byte, 0, 1+len(b))
	versioned = append(versioned, byte(version))
	versioned = append(versioned, b...)
	return WritePayloadFrame(w, versioned)
}

// ReadVersionedPayloadFrame reads one frame written by
// WriteVersionedPayloadFrame and checks its embedded version against
// negotiated, the protocol version this connection agreed on during its
// hello exchange. A frame whose version exceeds negotiated is rejected as
// ErrFrameVersionMismatch instead of being handed to the caller to decode —
// the framing-level half of version negotiation, independent of whatever a
// V2-only payload encoding would additionally require.
func ReadVersionedPayloadFrame(r io.Reader, negotiated ProtocolVersion) ([]byte, error) {
	body, err := ReadPayloadFrame(r)
	if err != nil {
		return nil, err
	}
	if len(body) < 1 {
		return nil, fmt.Errorf("comms: versioned payload frame too short for a version byte")
	}
	if frameVersion := ProtocolVersion(body[0]); frameVersion > negotiated {
		return nil, ErrFrameVersionMismatch
	}
	return body[1:], nil
}
