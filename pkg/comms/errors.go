package comms

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

// WebSocketHiccupTolerance is the number of transient BrokenPipe hiccups a
// WebSocket connection tolerates before the inbox loop gives up and closes
// cleanly. A fixed invariant, not configuration surface — the spec doesn't
// ask for a knob here.
const WebSocketHiccupTolerance = 10

// Inbox error taxonomy.
var (
	ErrDisconnected         = errors.New("comms: disconnected")
	ErrBrokenPipe           = errors.New("comms: broken pipe")
	ErrUnexpectedEOF        = errors.New("comms: unexpected eof")
	ErrConnectionAborted    = errors.New("comms: connection aborted")
	ErrConnectionReset      = errors.New("comms: connection reset")
	ErrReadOnly             = errors.New("comms: read only")
	ErrValidation           = errors.New("comms: validation error")
	ErrNotYetSubscribed     = errors.New("comms: not yet subscribed")
	ErrCertificateTooWeak   = errors.New("comms: certificate too weak")
	ErrMissingCertificate   = errors.New("comms: missing certificate")
	ErrFrameVersionMismatch = errors.New("comms: frame version exceeds negotiated protocol version")
	ErrFatal                = errors.New("comms: fatal error")
)

// Action is what an inbox loop should do in response to a classified
// error.
type Action int

const (
	// CloseClean ends the connection without logging at error level.
	CloseClean Action = iota
	// WarnClose logs a warning, then ends the connection.
	WarnClose
	// LogDebugContinue logs at debug level and keeps the connection open.
	LogDebugContinue
	// ErrorClose logs at error level, then ends the connection.
	ErrorClose
)

// Classify maps an inbox error to the action the connection loop should
// take, following §4.5.6's taxonomy. hiccups is the count of transient
// BrokenPipe hiccups already tolerated on this WebSocket connection this
// session; below WebSocketHiccupTolerance a BrokenPipe is tolerated
// (LogDebugContinue), and once the count reaches it the connection closes
// cleanly.
func Classify(err error, hiccups int) Action {
	switch {
	case errors.Is(err, ErrDisconnected), errors.Is(err, ErrUnexpectedEOF):
		return CloseClean
	case errors.Is(err, ErrBrokenPipe):
		if hiccups < WebSocketHiccupTolerance {
			return LogDebugContinue
		}
		return CloseClean
	case errors.Is(err, ErrConnectionAborted), errors.Is(err, ErrConnectionReset):
		return WarnClose
	case errors.Is(err, ErrReadOnly), errors.Is(err, ErrValidation):
		return LogDebugContinue
	case errors.Is(err, ErrNotYetSubscribed),
		errors.Is(err, ErrCertificateTooWeak),
		errors.Is(err, ErrMissingCertificate),
		errors.Is(err, ErrServerEncryptionWeak),
		errors.Is(err, ErrFrameVersionMismatch),
		errors.Is(err, ErrFatal):
		return ErrorClose
	default:
		return ErrorClose
	}
}

// FXHash computes the spec's "fx-hash" support-triage code: a 16-bit
// truncation of xxhash64, the closest pack-grounded analogue to an FNV-
// family obscured error code. Printed alongside a one-line failure reason
// so two reports of the same underlying cause carry a matching short code
// without exposing the full error text.
func FXHash(message string) uint16 {
	return uint16(xxhash.Sum64String(message))
}
