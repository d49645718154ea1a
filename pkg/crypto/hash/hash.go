// Package hash implements the content-addressing primitives used across the
// chain-of-trust: a 256-bit Hash for event identity and a 64-bit ShortHash
// truncation used for certificate fingerprints and compact comparisons.
package hash

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Size is the length in bytes of a Hash.
const Size = 32

// ShortSize is the length in bytes of a ShortHash.
const ShortSize = 8

// Hash is a 256-bit content hash (Blake2b-256).
type Hash [Size]byte

// ShortHash is a 64-bit truncation of a Hash, used for compact fingerprints.
type ShortHash [ShortSize]byte

// Zero is the all-zero hash, used as a sentinel for "no parent"/"no data".
var Zero Hash

// Sum computes the Hash of the concatenation of all given byte slices.
func Sum(parts ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an invalid key, and we never pass one.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Short truncates a Hash to its ShortHash (the first 8 bytes).
func (h Hash) Short() ShortHash {
	var s ShortHash
	copy(s[:], h[:ShortSize])
	return s
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// String returns the lower-case hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// FromBytes builds a Hash from a byte slice, which must be exactly Size bytes.
func FromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != Size {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// FromHex parses the lower-case hex encoding produced by String.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	h, ok := FromBytes(b)
	if !ok {
		return Hash{}, errInvalidLength
	}
	return h, nil
}

// Uint64 returns the ShortHash as a big-endian uint64, useful as a map key
// or sort key without allocating.
func (s ShortHash) Uint64() uint64 {
	return binary.BigEndian.Uint64(s[:])
}

func (s ShortHash) String() string {
	return hex.EncodeToString(s[:])
}

var errInvalidLength = hexLenError{}

type hexLenError struct{}

func (hexLenError) Error() string { return "hash: decoded value has wrong length" }
