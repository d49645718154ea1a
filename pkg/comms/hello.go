package comms

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/certen-mesh/atechain/pkg/crypto"
)

// ProtocolVersion is the wire protocol version negotiated during the hello
// exchange.
type ProtocolVersion int

const (
	V1 ProtocolVersion = 1
	V2 ProtocolVersion = 2
)

// NegotiateVersion returns the lower of the two versions each side offers,
// the spec's min(v1,v2) rule.
func NegotiateVersion(a, b ProtocolVersion) ProtocolVersion {
	if a < b {
		return a
	}
	return b
}

// Hello is the sender's opening JSON frame.
type Hello struct {
	ID      string          `json:"id"`
	Path    string          `json:"path"`
	Domain  string          `json:"domain"`
	KeySize *crypto.KeySize `json:"key_size,omitempty"`
	Version ProtocolVersion `json:"version"`
}

// HelloReply is the receiver's response JSON frame.
type HelloReply struct {
	ID         string          `json:"id"`
	Encryption *crypto.KeySize `json:"encryption,omitempty"`
	WireFormat WireFormat      `json:"wire_format"`
	Version    ProtocolVersion `json:"version"`
}

// Errors the hello exchange can abort with.
var (
	ErrServerEncryptionWeak       = errors.New("comms: server does not offer the required key size")
	ErrServerCertificateValidation = errors.New("comms: server certificate not on the allow-list")
)

// EncodeHello serializes h as the 16-bit-framed hello JSON body.
func EncodeHello(h Hello) ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("comms: encode hello: %w", err)
	}
	return b, nil
}

// DecodeHello parses a hello JSON body.
func DecodeHello(b []byte) (Hello, error) {
	var h Hello
	if err := json.Unmarshal(b, &h); err != nil {
		return Hello{}, fmt.Errorf("comms: decode hello: %w", err)
	}
	return h, nil
}

// EncodeHelloReply serializes a HelloReply.
func EncodeHelloReply(r HelloReply) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("comms: encode hello reply: %w", err)
	}
	return b, nil
}

// DecodeHelloReply parses a HelloReply JSON body.
func DecodeHelloReply(b []byte) (HelloReply, error) {
	var r HelloReply
	if err := json.Unmarshal(b, &r); err != nil {
		return HelloReply{}, fmt.Errorf("comms: decode hello reply: %w", err)
	}
	return r, nil
}

// CertificateTooWeakError reports a server-side certificate-strength
// failure: the hello exchange settled on an encryption size the server's
// own certificate cannot actually back.
type CertificateTooWeakError struct {
	Needed, Actual crypto.KeySize
}

func (e *CertificateTooWeakError) Error() string {
	return fmt.Sprintf("comms: server certificate too weak: needed %v, have %v", e.Needed, e.Actual)
}
func (e *CertificateTooWeakError) Unwrap() error { return ErrCertificateTooWeak }

// CheckServerCertificateStrength is the server-side counterpart to
// NegotiateEncryption: once the hello exchange has settled on a negotiated
// encryption size, the server must confirm its own certificate is at least
// that strong before completing the handshake, rather than trusting the
// size it advertised in the HelloReply. serverCertSize is nil when the
// server holds no certificate at all, which fails as ErrMissingCertificate
// whenever encryption was negotiated; a nil negotiated size means no
// encryption is in play and the check is skipped.
func CheckServerCertificateStrength(negotiated, serverCertSize *crypto.KeySize) error {
	if negotiated == nil {
		return nil
	}
	if serverCertSize == nil {
		return ErrMissingCertificate
	}
	if *serverCertSize < *negotiated {
		return &CertificateTooWeakError{Needed: *negotiated, Actual: *serverCertSize}
	}
	return nil
}

// NegotiateEncryption resolves the key size both sides end up using. If the
// client required encryption (non-nil KeySize) but the server did not
// offer at least that size, the client must abort with
// ErrServerEncryptionWeak. When both sides request encryption, the
// stronger of the two requested sizes wins.
func NegotiateEncryption(clientRequested, serverOffered *crypto.KeySize) (*crypto.KeySize, error) {
	if clientRequested == nil {
		return serverOffered, nil
	}
	if serverOffered == nil || *serverOffered < *clientRequested {
		return nil, ErrServerEncryptionWeak
	}
	size := crypto.Stronger(*clientRequested, *serverOffered)
	return &size, nil
}
