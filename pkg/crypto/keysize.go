// Package crypto collects the size-tier type shared by the symmetric,
// sign and kem sub-packages, plus the PrimaryKey identifier type used
// throughout the event model.
package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// KeySize is the security tier all crypto primitives are parameterized by.
// It maps onto AES-128/192/256 for symmetric encryption, a single Falcon-512
// signing scheme (§ DESIGN.md "falcon-tier"), and Kyber-512/768/1024 for key
// encapsulation.
type KeySize int

const (
	Bit128 KeySize = 128
	Bit192 KeySize = 192
	Bit256 KeySize = 256
)

// Valid reports whether k is one of the three supported tiers.
func (k KeySize) Valid() bool {
	switch k {
	case Bit128, Bit192, Bit256:
		return true
	default:
		return false
	}
}

func (k KeySize) String() string {
	return fmt.Sprintf("bit%d", int(k))
}

// Stronger returns the larger of a and b.
func Stronger(a, b KeySize) KeySize {
	if a > b {
		return a
	}
	return b
}

// PrimaryKeySize is the length in bytes of a PrimaryKey.
const PrimaryKeySize = 16

// PrimaryKey is a 128-bit opaque identifier, unique per logical record.
type PrimaryKey [PrimaryKeySize]byte

// NewPrimaryKey generates a random PrimaryKey.
func NewPrimaryKey() (PrimaryKey, error) {
	var k PrimaryKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("crypto: generate primary key: %w", err)
	}
	return k, nil
}

// MustNewPrimaryKey is like NewPrimaryKey but panics on failure; suitable
// only for tests and other contexts where randomness cannot fail.
func MustNewPrimaryKey() PrimaryKey {
	k, err := NewPrimaryKey()
	if err != nil {
		panic(err)
	}
	return k
}

func (k PrimaryKey) String() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns a copy of the key bytes.
func (k PrimaryKey) Bytes() []byte {
	b := make([]byte, PrimaryKeySize)
	copy(b, k[:])
	return b
}

// IsZero reports whether k is the all-zero key.
func (k PrimaryKey) IsZero() bool {
	return k == PrimaryKey{}
}

// PrimaryKeyFromBytes builds a PrimaryKey from a byte slice, which must be
// exactly PrimaryKeySize bytes.
func PrimaryKeyFromBytes(b []byte) (PrimaryKey, bool) {
	var k PrimaryKey
	if len(b) != PrimaryKeySize {
		return k, false
	}
	copy(k[:], b)
	return k, true
}

// PrimaryKeyFromHex parses the hex encoding produced by String.
func PrimaryKeyFromHex(s string) (PrimaryKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PrimaryKey{}, err
	}
	k, ok := PrimaryKeyFromBytes(b)
	if !ok {
		return PrimaryKey{}, fmt.Errorf("crypto: primary key must be %d bytes, got %d", PrimaryKeySize, len(b))
	}
	return k, nil
}

// Uint64 exposes the low 8 bytes of the key as a uint64, used only for
// sharding/lookup hints that do not require full-key comparison.
func (k PrimaryKey) Uint64() uint64 {
	return binary.BigEndian.Uint64(k[8:])
}
