// Package session implements Session: the ephemeral, never-persisted
// carrier of a connection's identity and key material. Generalizes the
// teacher's pkg/crypto/bls/key_manager.go "wrap raw key bytes behind a
// small typed accessor, zero on Close" pattern across the spec's four key
// categories.
package session

import (
	"github.com/certen-mesh/atechain/pkg/crypto/kem"
	"github.com/certen-mesh/atechain/pkg/crypto/sign"
	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
)

// KeyPair is one category's read/write/public-read key material: a
// symmetric read key plus a KEM private key for establishing new ones, a
// Falcon private key for writing, and the corresponding KEM public key to
// hand to peers.
type KeyPair struct {
	ReadKey       symmetric.EncryptKey
	ReadPrivate   kem.PrivateEncryptKey
	ReadPublic    kem.PublicEncryptKey
	WritePrivate  sign.PrivateSignKey
	WritePublic   sign.PublicSignKey
	hasReadKey    bool
	hasWriteKey   bool
}

// NewKeyPair returns an empty KeyPair; WithRead and WithWrite attach key
// material, each part optional — a session's UserKeys, say, may carry
// only a write key.
func NewKeyPair() KeyPair { return KeyPair{} }

// WithRead attaches symmetric + KEM read key material.
func (k KeyPair) WithRead(readKey symmetric.EncryptKey, priv kem.PrivateEncryptKey, pub kem.PublicEncryptKey) KeyPair {
	k.ReadKey = readKey
	k.ReadPrivate = priv
	k.ReadPublic = pub
	k.hasReadKey = true
	return k
}

// WithWrite attaches Falcon write key material.
func (k KeyPair) WithWrite(priv sign.PrivateSignKey, pub sign.PublicSignKey) KeyPair {
	k.WritePrivate = priv
	k.WritePublic = pub
	k.hasWriteKey = true
	return k
}

// HasRead reports whether this pair carries read key material.
func (k KeyPair) HasRead() bool { return k.hasReadKey }

// HasWrite reports whether this pair carries write key material.
func (k KeyPair) HasWrite() bool { return k.hasWriteKey }

// Zero best-effort zeroes the symmetric key bytes this pair holds. Private
// signing/KEM keys from circl do not expose a zeroing primitive, so those
// are left to the garbage collector, matching the spec's "best-effort"
// qualifier.
func (k *KeyPair) Zero() {
	k.ReadKey.Zero()
}

// Session carries a connection's identity and its four key categories.
// Sessions are constructed fresh per connection and are never written to
// the redo-log or any other persistent store.
type Session struct {
	Identity string

	UserKeys   KeyPair
	SudoKeys   KeyPair
	GroupKeys  KeyPair
	BrokerKeys KeyPair // bootstraps shared secrets with intermediary mesh nodes
}

// New creates a Session for identity with no key material populated.
func New(identity string) *Session {
	return &Session{Identity: identity}
}

// Zero best-effort zeroes every key category's symmetric key material.
func (s *Session) Zero() {
	s.UserKeys.Zero()
	s.SudoKeys.Zero()
	s.GroupKeys.Zero()
	s.BrokerKeys.Zero()
}
