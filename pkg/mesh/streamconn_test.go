package mesh

import (
	"net"
	"testing"

	"github.com/certen-mesh/atechain/pkg/comms"
	"github.com/certen-mesh/atechain/pkg/crypto"
)

func TestStreamConnRoundTripsOverNetPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	connA := NewStreamConn(a, comms.WireJSON, nil)
	connB := NewStreamConn(b, comms.WireJSON, nil)

	key := crypto.MustNewPrimaryKey()
	want := Lock(key)

	errCh := make(chan error, 1)
	go func() { errCh <- connA.Send(want) }()

	got, err := connB.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindLock || got.Key == nil || *got.Key != key {
		t.Fatalf("Receive() = %+v, want %+v", got, want)
	}
}

func TestStreamConnEncryptsWhenKeyProvided(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ek, err := newTestEncryptKey(t)
	if err != nil {
		t.Fatal(err)
	}

	connA := NewStreamConn(a, comms.WireJSON, &ek)
	connB := NewStreamConn(b, comms.WireJSON, &ek)

	want := Unlock(crypto.MustNewPrimaryKey())
	errCh := make(chan error, 1)
	go func() { errCh <- connA.Send(want) }()

	got, err := connB.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindUnlock || *got.Key != *want.Key {
		t.Fatalf("Receive() = %+v, want %+v", got, want)
	}
}
