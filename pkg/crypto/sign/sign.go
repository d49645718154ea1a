// Package sign implements PrivateSignKey/PublicSignKey using Falcon detached
// signatures, grounded on the same circl library Synnergy's core/security.go
// uses for its Dilithium signer (github.com/cloudflare/circl/sign/dilithium/
// mode3); we reach for circl's Falcon scheme instead since that is the
// algorithm the specification names, keeping the generate/sign/verify
// call shape identical to the Synnergy reference (GenerateKey, PrivateKey.Sign,
// package-level Verify).
package sign

import (
	"crypto"
	"crypto/rand"
	"fmt"

	falcon "github.com/cloudflare/circl/sign/falcon"

	atcrypto "github.com/certen-mesh/atechain/pkg/crypto"
)

// PrivateKeySize and PublicKeySize are the Falcon-512 key sizes circl ships.
// circl only exposes one Falcon parameter set, so all three KeySize tiers
// share the same signing key size — only the KEM and AES tiers vary with
// KeySize (see DESIGN.md, "falcon-tier").
const (
	PrivateKeySize = falcon.PrivateKeySize
	PublicKeySize  = falcon.PublicKeySize
)

// PrivateSignKey is a Falcon private key used to produce detached signatures.
type PrivateSignKey struct {
	sk falcon.PrivateKey
}

// PublicSignKey is the matching Falcon public key used to verify signatures.
type PublicSignKey struct {
	pk falcon.PublicKey
}

// GenerateKeyPair creates a new Falcon keypair. KeySize is accepted for
// symmetry with the KEM/AES constructors but does not change the underlying
// scheme (see PrivateKeySize doc comment).
func GenerateKeyPair(size atcrypto.KeySize) (PrivateSignKey, PublicSignKey, error) {
	if !size.Valid() {
		return PrivateSignKey{}, PublicSignKey{}, fmt.Errorf("sign: invalid key size %v", size)
	}
	pk, sk, err := falcon.GenerateKey(rand.Reader)
	if err != nil {
		return PrivateSignKey{}, PublicSignKey{}, fmt.Errorf("sign: generate falcon keypair: %w", err)
	}
	return PrivateSignKey{sk: sk}, PublicSignKey{pk: pk}, nil
}

// Sign produces a detached Falcon signature over data.
func (k PrivateSignKey) Sign(data []byte) ([]byte, error) {
	sig, err := k.sk.Sign(rand.Reader, data, crypto.Hash(0))
	if err != nil {
		return nil, fmt.Errorf("sign: falcon sign: %w", err)
	}
	return sig, nil
}

// Bytes returns the packed private key bytes.
func (k PrivateSignKey) Bytes() []byte {
	return append([]byte(nil), k.sk.Bytes()...)
}

// PrivateSignKeyFromBytes unpacks a Falcon private key.
func PrivateSignKeyFromBytes(b []byte) (PrivateSignKey, error) {
	var sk falcon.PrivateKey
	if err := sk.UnmarshalBinary(b); err != nil {
		return PrivateSignKey{}, fmt.Errorf("sign: unmarshal private key: %w", err)
	}
	return PrivateSignKey{sk: sk}, nil
}

// Bytes returns the packed public key bytes.
func (k PublicSignKey) Bytes() []byte {
	return append([]byte(nil), k.pk.Bytes()...)
}

// PublicSignKeyFromBytes unpacks a Falcon public key.
func PublicSignKeyFromBytes(b []byte) (PublicSignKey, error) {
	var pk falcon.PublicKey
	if err := pk.UnmarshalBinary(b); err != nil {
		return PublicSignKey{}, fmt.Errorf("sign: unmarshal public key: %w", err)
	}
	return PublicSignKey{pk: pk}, nil
}

// Verify reports whether sig is a valid Falcon signature over data under k.
// Any bit flip in data or sig must flip the result to false.
func (k PublicSignKey) Verify(data, sig []byte) bool {
	return falcon.Verify(k.pk, data, sig)
}

// Equal reports whether two public keys are byte-identical.
func (k PublicSignKey) Equal(other PublicSignKey) bool {
	a, b := k.pk.Bytes(), other.pk.Bytes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
