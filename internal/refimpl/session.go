package refimpl

import (
	"fmt"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/kem"
	"github.com/certen-mesh/atechain/pkg/crypto/sign"
	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
	"github.com/certen-mesh/atechain/pkg/session"
)

// NewDemoSession generates a fresh Session with UserKeys populated for
// identity: a Bit256 symmetric read key plus its KEM pair, and a Falcon
// write pair. For tests that need a session without a real key-exchange
// handshake.
func NewDemoSession(identity string) (*session.Session, error) {
	readPriv, readPub, err := kem.GenerateKeyPair(crypto.Bit256)
	if err != nil {
		return nil, fmt.Errorf("refimpl: generate read keys: %w", err)
	}
	readKey, err := symmetric.NewEncryptKey(crypto.Bit256)
	if err != nil {
		return nil, fmt.Errorf("refimpl: generate read key: %w", err)
	}
	writePriv, writePub, err := sign.GenerateKeyPair(crypto.Bit256)
	if err != nil {
		return nil, fmt.Errorf("refimpl: generate write keys: %w", err)
	}

	s := session.New(identity)
	s.UserKeys = session.NewKeyPair().
		WithRead(readKey, readPriv, readPub).
		WithWrite(writePriv, writePub)
	return s, nil
}
