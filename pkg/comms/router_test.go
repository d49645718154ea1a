package comms

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestRouterDispatchesHTTPByLongestPrefix(t *testing.T) {
	r := NewRouter(nil)
	r.HandleHTTP("/chains", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chains"))
	}))
	r.HandleHTTP("/chains/admin", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("admin"))
	}))

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chains/admin/users")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 32)
	n, _ := resp.Body.Read(buf)
	if got := string(buf[:n]); got != "admin" {
		t.Fatalf("body = %q, want %q (longest-prefix match)", got, "admin")
	}
}

func TestRouterFallsBackToDefaultHTTP(t *testing.T) {
	r := NewRouter(nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nowhere")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRouterUpgradesRegisteredWebSocketPath(t *testing.T) {
	r := NewRouter(nil)
	reached := make(chan struct{}, 1)
	r.HandleWebSocket("/ws", func(conn *websocket.Conn, req *http.Request) {
		reached <- struct{}{}
		conn.Close()
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	select {
	case <-reached:
	case <-time.After(2 * time.Second):
		t.Fatal("websocket handler was never invoked")
	}
}

func TestLongestMatchPicksMostSpecificPrefix(t *testing.T) {
	registry := map[string]string{
		"/a":   "shallow",
		"/a/b": "deep",
	}
	prefix, handler, ok := longestMatch(registry, "/a/b/c")
	if !ok || prefix != "/a/b" || handler != "deep" {
		t.Fatalf("longestMatch() = (%q, %q, %v), want (/a/b, deep, true)", prefix, handler, ok)
	}
}

func TestLongestMatchNoneFound(t *testing.T) {
	registry := map[string]string{"/a": "x"}
	_, _, ok := longestMatch(registry, "/z")
	if ok {
		t.Fatal("expected no match")
	}
}

