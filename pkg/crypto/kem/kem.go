// Package kem implements PrivateEncryptKey/PublicEncryptKey key
// encapsulation. The specification names NTRU as the KEM family; circl (the
// PQC library grounded via Synnergy's core/security.go Dilithium signer)
// does not ship NTRU, so this package uses circl's Kyber KEM family instead
// — Kyber occupies the same "lattice-based NIST KEM" slot NTRU would have,
// and KeySize still selects among three strengths exactly as the spec's
// NTRU-hps-2048509/677/4096821 tiers would have (see DESIGN.md, "kem-tier").
package kem

import (
	"crypto/rand"
	"fmt"

	circlkem "github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/kyber/kyber1024"
	"github.com/cloudflare/circl/kem/kyber/kyber512"
	"github.com/cloudflare/circl/kem/kyber/kyber768"

	atcrypto "github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
)

func schemeFor(size atcrypto.KeySize) (circlkem.Scheme, error) {
	switch size {
	case atcrypto.Bit128:
		return kyber512.Scheme(), nil
	case atcrypto.Bit192:
		return kyber768.Scheme(), nil
	case atcrypto.Bit256:
		return kyber1024.Scheme(), nil
	default:
		return nil, fmt.Errorf("kem: invalid key size %v", size)
	}
}

// PrivateEncryptKey is a KEM private key.
type PrivateEncryptKey struct {
	size atcrypto.KeySize
	sk   circlkem.PrivateKey
}

// PublicEncryptKey is the matching KEM public key.
type PublicEncryptKey struct {
	size atcrypto.KeySize
	pk   circlkem.PublicKey
}

// Size returns the tier the key was generated at.
func (k PrivateEncryptKey) Size() atcrypto.KeySize { return k.size }

// Size returns the tier the key was generated at.
func (k PublicEncryptKey) Size() atcrypto.KeySize { return k.size }

// GenerateKeyPair creates a new KEM keypair at the given tier.
func GenerateKeyPair(size atcrypto.KeySize) (PrivateEncryptKey, PublicEncryptKey, error) {
	scheme, err := schemeFor(size)
	if err != nil {
		return PrivateEncryptKey{}, PublicEncryptKey{}, err
	}
	pk, sk, err := scheme.GenerateKeyPair()
	if err != nil {
		return PrivateEncryptKey{}, PublicEncryptKey{}, fmt.Errorf("kem: generate keypair: %w", err)
	}
	return PrivateEncryptKey{size: size, sk: sk}, PublicEncryptKey{size: size, pk: pk}, nil
}

// Bytes returns the packed public key.
func (k PublicEncryptKey) Bytes() []byte {
	b, _ := k.pk.MarshalBinary()
	return b
}

// PublicEncryptKeyFromBytes unpacks a public key at the given tier.
func PublicEncryptKeyFromBytes(size atcrypto.KeySize, b []byte) (PublicEncryptKey, error) {
	scheme, err := schemeFor(size)
	if err != nil {
		return PublicEncryptKey{}, err
	}
	pk, err := scheme.UnmarshalBinaryPublicKey(b)
	if err != nil {
		return PublicEncryptKey{}, fmt.Errorf("kem: unmarshal public key: %w", err)
	}
	return PublicEncryptKey{size: size, pk: pk}, nil
}

// Bytes returns the packed private key.
func (k PrivateEncryptKey) Bytes() []byte {
	b, _ := k.sk.MarshalBinary()
	return b
}

// PrivateEncryptKeyFromBytes unpacks a private key at the given tier.
func PrivateEncryptKeyFromBytes(size atcrypto.KeySize, b []byte) (PrivateEncryptKey, error) {
	scheme, err := schemeFor(size)
	if err != nil {
		return PrivateEncryptKey{}, err
	}
	sk, err := scheme.UnmarshalBinaryPrivateKey(b)
	if err != nil {
		return PrivateEncryptKey{}, fmt.Errorf("kem: unmarshal private key: %w", err)
	}
	return PrivateEncryptKey{size: size, sk: sk}, nil
}

// Encapsulate performs the KEM encapsulation operation against pk, returning
// the ciphertext (carried on the wire as an InitializationVector) and the
// derived symmetric EncryptKey.
func Encapsulate(pk PublicEncryptKey) (symmetric.InitializationVector, symmetric.EncryptKey, error) {
	scheme, err := schemeFor(pk.size)
	if err != nil {
		return nil, symmetric.EncryptKey{}, err
	}
	ct, ss, err := scheme.Encapsulate(pk.pk)
	if err != nil {
		return nil, symmetric.EncryptKey{}, fmt.Errorf("kem: encapsulate: %w", err)
	}
	key, err := symmetricKeyFromSharedSecret(pk.size, ss)
	if err != nil {
		return nil, symmetric.EncryptKey{}, err
	}
	return symmetric.InitializationVector(ct), key, nil
}

// Decapsulate recovers the symmetric EncryptKey from a KEM ciphertext (iv)
// using sk. If sk does not match the key the ciphertext was encapsulated
// against, the derived key will not match the sender's and downstream
// authentication (or decryption) will fail — circl KEMs do not themselves
// report a decapsulation failure for mismatched keys (implicit rejection).
func Decapsulate(sk PrivateEncryptKey, iv symmetric.InitializationVector) (symmetric.EncryptKey, error) {
	scheme, err := schemeFor(sk.size)
	if err != nil {
		return symmetric.EncryptKey{}, err
	}
	ss, err := scheme.Decapsulate(sk.sk, []byte(iv))
	if err != nil {
		return symmetric.EncryptKey{}, fmt.Errorf("kem: decapsulate: %w", err)
	}
	return symmetricKeyFromSharedSecret(sk.size, ss)
}

// symmetricKeyFromSharedSecret maps a KEM shared secret onto an EncryptKey
// of the same tier via the deterministic seed-expansion construction shared
// with EncryptKeyFromSeed, so Encapsulate/Decapsulate and seed-derived keys
// compose predictably.
func symmetricKeyFromSharedSecret(size atcrypto.KeySize, ss []byte) (symmetric.EncryptKey, error) {
	return symmetric.EncryptKeyFromSeed(ss, size)
}

// GenerateRandomBytes returns n cryptographically secure random bytes, used
// by callers that need fresh entropy outside the KEM/sign flows (e.g. nonces
// for the hello handshake).
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
