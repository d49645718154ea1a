// Package symmetric implements EncryptKey (AES-CTR) and InitializationVector,
// following the teacher's use of stdlib crypto/aes + crypto/cipher for
// non-PQC primitives (certenIO's pkg/crypto/bls reaches for crypto/sha256 and
// crypto/rand the same way: stdlib for core-language crypto, third-party
// libraries only for the PQC schemes).
package symmetric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/hash"
)

// IVSize is the number of bytes of an InitializationVector actually fed to
// AES-CTR; longer vectors are truncated and shorter ones zero-padded.
const IVSize = aes.BlockSize

// InitializationVector is an opaque byte vector. When used with AES-CTR only
// its first IVSize bytes matter.
type InitializationVector []byte

// CTRBytes returns exactly IVSize bytes suitable for use as an AES-CTR
// counter: iv's first IVSize bytes, zero-padded on the right if iv is
// shorter.
func (iv InitializationVector) CTRBytes() [IVSize]byte {
	var out [IVSize]byte
	n := copy(out[:], iv)
	_ = n
	return out
}

// NewInitializationVector generates a random InitializationVector of n bytes.
func NewInitializationVector(n int) (InitializationVector, error) {
	iv := make(InitializationVector, n)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("symmetric: generate iv: %w", err)
	}
	return iv, nil
}

// keySize returns the AES key length in bytes for a given tier.
func keySize(size crypto.KeySize) (int, error) {
	switch size {
	case crypto.Bit128:
		return 16, nil
	case crypto.Bit192:
		return 24, nil
	case crypto.Bit256:
		return 32, nil
	default:
		return 0, fmt.Errorf("symmetric: invalid key size %v", size)
	}
}

// EncryptKey is a symmetric AES-CTR key parameterized by a KeySize tier.
type EncryptKey struct {
	size crypto.KeySize
	key  []byte
}

// Size returns the key's tier.
func (k EncryptKey) Size() crypto.KeySize { return k.size }

// Bytes returns a copy of the raw key bytes.
func (k EncryptKey) Bytes() []byte {
	b := make([]byte, len(k.key))
	copy(b, k.key)
	return b
}

// Hash returns the content hash of the key, used to key an
// EncryptedPrivateKey envelope or to identify a Confidentiality key.
func (k EncryptKey) Hash() hash.Hash {
	return hash.Sum(k.key)
}

// Zero overwrites the key material with zeroes, best-effort, so the key is
// not retained in memory once the caller is done with it.
func (k *EncryptKey) Zero() {
	for i := range k.key {
		k.key[i] = 0
	}
}

// NewEncryptKey generates a random EncryptKey for the given tier.
func NewEncryptKey(size crypto.KeySize) (EncryptKey, error) {
	n, err := keySize(size)
	if err != nil {
		return EncryptKey{}, err
	}
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return EncryptKey{}, fmt.Errorf("symmetric: generate key: %w", err)
	}
	return EncryptKey{size: size, key: key}, nil
}

// EncryptKeyFromSeed derives a deterministic EncryptKey from a seed
// bytestring via a cryptographic hash (seed expansion), truncated/extended
// to the tier's key length by expand.
func EncryptKeyFromSeed(seed []byte, size crypto.KeySize) (EncryptKey, error) {
	n, err := keySize(size)
	if err != nil {
		return EncryptKey{}, err
	}
	expanded := expand(seed, n)
	return EncryptKey{size: size, key: expanded}, nil
}

// expand derives exactly n bytes of key material from seed by hashing
// seed||counter blocks, the standard seed-expansion construction.
func expand(seed []byte, n int) []byte {
	out := make([]byte, 0, n)
	var counter uint32
	for len(out) < n {
		ctrBytes := []byte{byte(counter >> 24), byte(counter >> 16), byte(counter >> 8), byte(counter)}
		block := hash.Sum(seed, ctrBytes)
		out = append(out, block[:]...)
		counter++
	}
	return out[:n]
}

// EncryptKeyFromBytes wraps raw key bytes as an EncryptKey of the given tier.
// The byte length must already match the tier (use Resize otherwise).
func EncryptKeyFromBytes(size crypto.KeySize, key []byte) (EncryptKey, error) {
	n, err := keySize(size)
	if err != nil {
		return EncryptKey{}, err
	}
	if len(key) != n {
		return EncryptKey{}, fmt.Errorf("symmetric: key for %v must be %d bytes, got %d", size, n, len(key))
	}
	cp := make([]byte, n)
	copy(cp, key)
	return EncryptKey{size: size, key: cp}, nil
}

// Xor combines two keys of the same tier byte-for-byte. Xor is commutative
// and associative, so key material from independent sources (e.g. the two
// halves of a KEM exchange) can be combined in either order.
func (k EncryptKey) Xor(other EncryptKey) (EncryptKey, error) {
	if len(k.key) != len(other.key) {
		return EncryptKey{}, fmt.Errorf("symmetric: xor requires equal-length keys, got %d and %d", len(k.key), len(other.key))
	}
	out := make([]byte, len(k.key))
	for i := range out {
		out[i] = k.key[i] ^ other.key[i]
	}
	size := crypto.Stronger(k.size, other.size)
	return EncryptKey{size: size, key: out}, nil
}

// Resize returns a copy of k re-keyed to the target tier: the raw bytes are
// zero-padded if the target is longer, or truncated if the target is
// shorter.
func (k EncryptKey) Resize(target crypto.KeySize) (EncryptKey, error) {
	n, err := keySize(target)
	if err != nil {
		return EncryptKey{}, err
	}
	out := make([]byte, n)
	copy(out, k.key) // copy truncates or leaves the tail zero automatically
	return EncryptKey{size: target, key: out}, nil
}

// EncryptWithIV encrypts plaintext with AES-CTR under the given iv.
func (k EncryptKey) EncryptWithIV(iv InitializationVector, plaintext []byte) ([]byte, error) {
	return k.xorStream(iv, plaintext)
}

// Decrypt decrypts ciphertext with AES-CTR under the given iv. AES-CTR is
// its own inverse, so Decrypt and EncryptWithIV share an implementation.
func (k EncryptKey) Decrypt(iv InitializationVector, ciphertext []byte) ([]byte, error) {
	return k.xorStream(iv, ciphertext)
}

func (k EncryptKey) xorStream(iv InitializationVector, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, fmt.Errorf("symmetric: new cipher: %w", err)
	}
	ctrBytes := iv.CTRBytes()
	stream := cipher.NewCTR(block, ctrBytes[:])
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// EncryptedPrivateKey wraps opaque private-key bytes (a signing key) behind
// a symmetric envelope, keyed by the hash of the EncryptKey used to wrap it,
// mirroring certenIO's pkg/crypto/bls key_manager.go envelope pattern.
type EncryptedPrivateKey struct {
	KeyHash hash.Hash
	IV      InitializationVector
	Cipher  []byte
}

// SealPrivateKey wraps plaintext private-key bytes under key.
func SealPrivateKey(key EncryptKey, plaintext []byte) (EncryptedPrivateKey, error) {
	iv, err := NewInitializationVector(IVSize)
	if err != nil {
		return EncryptedPrivateKey{}, err
	}
	ct, err := key.EncryptWithIV(iv, plaintext)
	if err != nil {
		return EncryptedPrivateKey{}, err
	}
	return EncryptedPrivateKey{KeyHash: key.Hash(), IV: iv, Cipher: ct}, nil
}

// Open decrypts e, returning an error if key does not match the hash e was
// sealed under.
func (e EncryptedPrivateKey) Open(key EncryptKey) ([]byte, error) {
	if key.Hash() != e.KeyHash {
		return nil, fmt.Errorf("symmetric: key does not match encrypted private key")
	}
	return key.Decrypt(e.IV, e.Cipher)
}
