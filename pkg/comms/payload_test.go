package comms

import (
	"bytes"
	"testing"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
)

func TestEncryptDecryptPayloadRoundTrip(t *testing.T) {
	ek, err := symmetric.NewEncryptKey(crypto.Bit256)
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("a redo-log event payload")

	body, err := EncryptPayload(ek, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecryptPayload(ek, body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("DecryptPayload() = %q, want %q", got, plaintext)
	}
}

func TestEncryptPayloadProducesDistinctCiphertextsPerCall(t *testing.T) {
	ek, err := symmetric.NewEncryptKey(crypto.Bit256)
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("same plaintext twice")

	a, err := EncryptPayload(ek, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptPayload(ek, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("expected distinct IVs to produce distinct ciphertexts")
	}
}

func TestDecryptPayloadRejectsTruncatedBody(t *testing.T) {
	if _, err := DecryptPayload(symmetric.EncryptKey{}, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
	if _, err := DecryptPayload(symmetric.EncryptKey{}, []byte{5, 1, 2}); err == nil {
		t.Fatal("expected error for iv length exceeding body")
	}
}
