package comms

import (
	"sync"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
	"github.com/certen-mesh/atechain/pkg/crypto/kem"
	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
)

// CertificateAllowList is the set of server KEM public keys (by hash) a
// client is willing to complete a handshake against.
type CertificateAllowList struct {
	mu      sync.RWMutex
	allowed map[hash.Hash]bool
}

// NewCertificateAllowList creates an allow-list seeded with certs.
func NewCertificateAllowList(certs ...kem.PublicEncryptKey) *CertificateAllowList {
	l := &CertificateAllowList{allowed: make(map[hash.Hash]bool)}
	for _, c := range certs {
		l.Allow(c)
	}
	return l
}

// Allow adds pub to the allow-list.
func (l *CertificateAllowList) Allow(pub kem.PublicEncryptKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowed[hash.Sum(pub.Bytes())] = true
}

// Contains reports whether pub is on the allow-list.
func (l *CertificateAllowList) Contains(pub kem.PublicEncryptKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowed[hash.Sum(pub.Bytes())]
}

// ClientKEM drives the client side of the two-halves XOR key exchange
// described in the wire transport spec: the client's own ephemeral
// keypair (K1) plus whatever state it needs to complete the exchange once
// the server replies.
type ClientKEM struct {
	priv kem.PrivateEncryptKey
	pub  kem.PublicEncryptKey
}

// BeginClientKEM generates the client's ephemeral KEM keypair K1. The
// returned public key is what the client sends to the server as pk1.
func BeginClientKEM(size crypto.KeySize) (*ClientKEM, kem.PublicEncryptKey, error) {
	priv, pub, err := kem.GenerateKeyPair(size)
	if err != nil {
		return nil, kem.PublicEncryptKey{}, err
	}
	return &ClientKEM{priv: priv, pub: pub}, pub, nil
}

// Finish completes the client side of the exchange given the server's
// iv1 (from encapsulating pk1) and the server's long-lived certificate
// pk2. serverPub is checked against allowList before anything else; a
// mismatch aborts with ErrServerCertificateValidation. On success it
// returns the shared symmetric key and iv2, which the client must send to
// the server to let it complete its own half.
func (c *ClientKEM) Finish(allowList *CertificateAllowList, iv1 symmetric.InitializationVector, serverPub kem.PublicEncryptKey) (symmetric.EncryptKey, symmetric.InitializationVector, error) {
	if allowList != nil && !allowList.Contains(serverPub) {
		return symmetric.EncryptKey{}, nil, ErrServerCertificateValidation
	}

	ek1, err := kem.Decapsulate(c.priv, iv1)
	if err != nil {
		return symmetric.EncryptKey{}, nil, err
	}
	iv2, ek2, err := kem.Encapsulate(serverPub)
	if err != nil {
		return symmetric.EncryptKey{}, nil, err
	}
	ek, err := ek1.Xor(ek2)
	if err != nil {
		return symmetric.EncryptKey{}, nil, err
	}
	return ek, iv2, nil
}

// ServerKEM drives the server side of the exchange. certPriv/certPub are
// the server's long-lived KEM certificate (K2), generated once and reused
// across client handshakes.
type ServerKEM struct {
	certPriv kem.PrivateEncryptKey
	certPub  kem.PublicEncryptKey
}

// NewServerKEM wraps a server's long-lived KEM certificate.
func NewServerKEM(certPriv kem.PrivateEncryptKey, certPub kem.PublicEncryptKey) *ServerKEM {
	return &ServerKEM{certPriv: certPriv, certPub: certPub}
}

// CertPublic returns the server's long-lived public key (pk2), sent to
// every connecting client.
func (s *ServerKEM) CertPublic() kem.PublicEncryptKey { return s.certPub }

// CheckCertificateStrength verifies this server's own certificate is at
// least as strong as negotiated, the check a server runs right after the
// hello exchange settles on an encryption size and before it begins the
// KEM exchange — grounded on the original router's post-hello
// CertificateTooWeak guard, which compares the negotiated size against the
// server's certificate rather than trusting what it advertised.
func (s *ServerKEM) CheckCertificateStrength(negotiated *crypto.KeySize) error {
	size := s.certPub.Size()
	return CheckServerCertificateStrength(negotiated, &size)
}

// Begin encapsulates the client's pk1, returning iv1 (sent to the client)
// and ek1 (kept to XOR with ek2 once the client replies).
func (s *ServerKEM) Begin(clientPub kem.PublicEncryptKey) (symmetric.InitializationVector, symmetric.EncryptKey, error) {
	return kem.Encapsulate(clientPub)
}

// Finish decapsulates the client's iv2 using the server's long-lived
// private key and XORs the result with ek1 from Begin to produce the
// shared symmetric key.
func (s *ServerKEM) Finish(ek1 symmetric.EncryptKey, iv2 symmetric.InitializationVector) (symmetric.EncryptKey, error) {
	ek2, err := kem.Decapsulate(s.certPriv, iv2)
	if err != nil {
		return symmetric.EncryptKey{}, err
	}
	return ek1.Xor(ek2)
}
