package mesh_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/certen-mesh/atechain/pkg/chain"
	"github.com/certen-mesh/atechain/pkg/comms"
	"github.com/certen-mesh/atechain/pkg/crypto"
	"github.com/certen-mesh/atechain/pkg/event"
	"github.com/certen-mesh/atechain/pkg/mesh"
	"github.com/certen-mesh/atechain/pkg/mesh/client"
	"github.com/certen-mesh/atechain/pkg/mesh/server"
)

func dial(t *testing.T, srv *server.Server) mesh.Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	go srv.HandleConn(context.Background(), mesh.NewStreamConn(b, comms.WireJSON, nil))
	return mesh.NewStreamConn(a, comms.WireJSON, nil)
}

func receive(t *testing.T, conn mesh.Conn) mesh.Message {
	t.Helper()
	type result struct {
		msg mesh.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := conn.Receive()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatal(r.err)
		}
		return r.msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
		return mesh.Message{}
	}
}

// Scenario: write-then-read across mesh. A client stores a string under a
// fresh key on one chain; a second client opens the same chain through a
// different connection and observes the value during catch-up replay.
func TestWriteThenReadAcrossMesh(t *testing.T) {
	srv := server.NewServer(server.AlwaysCreate, nil)

	writer := client.New(dial(t, srv))
	writerSub, err := writer.Subscribe("test-chain", nil)
	if err != nil {
		t.Fatal(err)
	}
	<-writerSub.EndOfHistory

	key := crypto.MustNewPrimaryKey()
	ev := event.New(event.Metadata{Core: []event.Entry{event.EntryData(key)}}, []byte("my test string"))
	if err := writer.Feed(crypto.MustNewPrimaryKey(), []event.Event{ev}); err != nil {
		t.Fatal(err)
	}

	reader := client.New(dial(t, srv))
	readerSub, err := reader.Subscribe("test-chain", nil)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-readerSub.Events:
		if string(got.Data) != "my test string" {
			t.Fatalf("value = %q, want %q", got.Data, "my test string")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for replayed event")
	}
	<-readerSub.EndOfHistory
}

// Scenario: two independently-listening mesh servers bridged by a relay
// client, each hosting their own chain instance for the same chain key. A
// client on server A writes and a client on server B observes it. This
// checks the A-to-B leg of the two-servers, two-clients echo scenario,
// with the inter-server hop played by a bridge client instead of a raw
// UDP socket pair; the reverse leg is not exercised.
func TestCrossServerEchoViaBridge(t *testing.T) {
	chainA := chain.OpenEphemeral()
	chainB := chain.OpenEphemeral()

	srvA := server.NewServer(server.AlwaysReject, nil)
	srvA.Register("edge", chainA)
	srvB := server.NewServer(server.AlwaysReject, nil)
	srvB.Register("edge", chainB)

	bridgeAtoB := client.New(dial(t, srvA))
	bridgeSub, err := bridgeAtoB.Subscribe("edge", nil)
	if err != nil {
		t.Fatal(err)
	}
	<-bridgeSub.EndOfHistory

	bridgeToB := client.New(dial(t, srvB))
	if _, err := bridgeToB.Subscribe("edge", nil); err != nil {
		t.Fatal(err)
	}
	go func() {
		for ev := range bridgeSub.Events {
			key := crypto.MustNewPrimaryKey()
			relayed := event.New(event.Metadata{Core: []event.Entry{event.EntryData(key)}}, ev.Data)
			bridgeToB.Feed(crypto.MustNewPrimaryKey(), []event.Event{relayed})
		}
	}()

	clientA := client.New(dial(t, srvA))
	subA, err := clientA.Subscribe("edge", nil)
	if err != nil {
		t.Fatal(err)
	}
	<-subA.EndOfHistory

	clientB := client.New(dial(t, srvB))
	subB, err := clientB.Subscribe("edge", nil)
	if err != nil {
		t.Fatal(err)
	}
	<-subB.EndOfHistory

	key := crypto.MustNewPrimaryKey()
	ev := event.New(event.Metadata{Core: []event.Entry{event.EntryData(key)}}, []byte{1, 2, 3})
	if err := clientA.Feed(crypto.MustNewPrimaryKey(), []event.Event{ev}); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-subB.Events:
		if string(got.Data) != string([]byte{1, 2, 3}) {
			t.Fatalf("server B observed %v, want [1 2 3]", got.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server B to observe A's write")
	}
}

// Scenario: lock hand-off on disconnect. Session A locks key K and
// disconnects without unlocking; session B then acquires K successfully.
func TestLockHandoffOnDisconnect(t *testing.T) {
	srv := server.NewServer(server.AlwaysCreate, nil)
	key := crypto.MustNewPrimaryKey()

	connA := dial(t, srv)
	if err := connA.Send(mesh.Lock(key)); err != nil {
		t.Fatal(err)
	}
	resA := receive(t, connA)
	if !resA.IsLocked {
		t.Fatal("session A should acquire the lock")
	}
	if err := connA.Close(); err != nil {
		t.Fatal(err)
	}

	// give the server's HandleConn goroutine time to observe the
	// disconnect and release A's locks.
	deadline := time.Now().Add(2 * time.Second)
	var gotB bool
	for time.Now().Before(deadline) {
		connB := dial(t, srv)
		if err := connB.Send(mesh.Lock(key)); err != nil {
			t.Fatal(err)
		}
		resB := receive(t, connB)
		connB.Close()
		if resB.IsLocked {
			gotB = true
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !gotB {
		t.Fatal("session B never acquired the lock released by A's disconnect")
	}
}

// Scenario: historical replay. A chain with 3500 events; a new subscriber
// with an empty sample receives exactly 3500 Events entries split across
// at least 4 batches of at most 1000, bracketed by StartOfHistory and
// EndOfHistory.
func TestHistoricalReplaySplitsIntoBoundedBatches(t *testing.T) {
	const total = 3500
	c := chain.OpenEphemeral()
	for i := 0; i < total; i++ {
		key := crypto.MustNewPrimaryKey()
		ev := event.New(event.Metadata{Core: []event.Entry{event.EntryData(key)}}, []byte("x"))
		if _, _, err := c.Feed(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}

	srv := server.NewServer(server.AlwaysReject, nil)
	srv.Register("big-chain", c)

	conn := dial(t, srv)
	if err := conn.Send(mesh.Subscribe("big-chain", nil)); err != nil {
		t.Fatal(err)
	}

	if got := receive(t, conn); got.Kind != mesh.KindStartOfHistory {
		t.Fatalf("first message kind = %v, want StartOfHistory", got.Kind)
	}

	var batches, received int
	for {
		msg := receive(t, conn)
		if msg.Kind == mesh.KindEndOfHistory {
			break
		}
		if msg.Kind != mesh.KindEvents {
			t.Fatalf("unexpected message kind %v during replay", msg.Kind)
		}
		if len(msg.Events) > 1000 {
			t.Fatalf("batch size %d exceeds 1000", len(msg.Events))
		}
		batches++
		received += len(msg.Events)
	}

	if received != total {
		t.Fatalf("received %d events, want %d", received, total)
	}
	if batches < 4 {
		t.Fatalf("received %d batches, want >= 4", batches)
	}
}
