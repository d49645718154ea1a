package comms

import (
	"fmt"

	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
)

// EncryptPayload builds one encrypted payload frame body: a one-byte IV
// length, the IV itself, then the AES-CTR ciphertext. The caller wraps the
// result in a 32-bit length-prefixed frame via WritePayloadFrame.
func EncryptPayload(ek symmetric.EncryptKey, plaintext []byte) ([]byte, error) {
	iv, err := symmetric.NewInitializationVector(symmetric.IVSize)
	if err != nil {
		return nil, err
	}
	if len(iv) > 0xFF {
		return nil, fmt.Errorf("comms: iv too long to length-prefix: %d bytes", len(iv))
	}
	cipher, err := ek.EncryptWithIV(iv, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+len(iv)+len(cipher))
	out = append(out, byte(len(iv)))
	out = append(out, iv...)
	out = append(out, cipher...)
	return out, nil
}

// DecryptPayload reverses EncryptPayload given the shared symmetric key.
func DecryptPayload(ek symmetric.EncryptKey, body []byte) ([]byte, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("comms: payload body too short for iv length prefix")
	}
	ivLen := int(body[0])
	if len(body) < 1+ivLen {
		return nil, fmt.Errorf("comms: payload body too short for iv of length %d", ivLen)
	}
	iv := symmetric.InitializationVector(body[1 : 1+ivLen])
	cipher := body[1+ivLen:]
	return ek.Decrypt(iv, cipher)
}
