package mesh_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/certen-mesh/atechain/pkg/comms"
	"github.com/certen-mesh/atechain/pkg/mesh"
)

func TestWebSocketReadWriterCarriesStreamConnMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverDone := make(chan mesh.Message, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		conn := mesh.NewStreamConn(mesh.NewWebSocketReadWriter(wsConn), comms.WireJSON, nil)
		msg, err := conn.Receive()
		if err != nil {
			t.Error(err)
			return
		}
		serverDone <- msg
	}))
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):]
	clientWS, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer clientWS.Close()

	clientConn := mesh.NewStreamConn(mesh.NewWebSocketReadWriter(clientWS), comms.WireJSON, nil)
	if err := clientConn.Send(mesh.Subscribe("test-chain", nil)); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-serverDone:
		if got.Kind != mesh.KindSubscribe || got.ChainKey != "test-chain" {
			t.Fatalf("got = %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the subscribe message")
	}
}
