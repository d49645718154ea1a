package mesh

import (
	"testing"

	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
)

func newTestEncryptKey(t *testing.T) (symmetric.EncryptKey, error) {
	t.Helper()
	return symmetric.NewEncryptKey(crypto.Bit256)
}
