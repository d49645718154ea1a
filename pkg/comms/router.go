package comms

import (
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/websocket"
)

// StreamHandler handles a connection after the hello exchange completes —
// the post-hello "stream" registry.
type StreamHandler func(conn *websocket.Conn, hello Hello)

// WebSocketHandler handles a raw, pre-hello WebSocket connection.
type WebSocketHandler func(conn *websocket.Conn, r *http.Request)

// Router maintains the three path-prefix registries the spec calls for —
// raw HTTP, raw WebSocket (pre-hello passthrough), and post-hello stream —
// generalizing the teacher's per-concern HTTP handler structs
// (AttestationHandlers, BatchHandlers, ...), each registered onto a mux by
// prefix, into one router spanning all three carriers.
type Router struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	http      map[string]http.Handler
	websocket map[string]WebSocketHandler
	stream    map[string]StreamHandler

	defaultHTTP http.Handler
}

// NewRouter creates an empty router. A nil logger defaults to one prefixed
// "[Router] ", matching the teacher's per-component logger convention.
func NewRouter(logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(log.Writer(), "[Router] ", log.LstdFlags)
	}
	return &Router{
		logger:      logger,
		upgrader:    websocket.Upgrader{},
		http:        make(map[string]http.Handler),
		websocket:   make(map[string]WebSocketHandler),
		stream:      make(map[string]StreamHandler),
		defaultHTTP: http.NotFoundHandler(),
	}
}

// HandleHTTP registers h for every request path under prefix.
func (r *Router) HandleHTTP(prefix string, h http.Handler) {
	r.http[prefix] = h
}

// HandleWebSocket registers h for raw WebSocket connections under prefix.
func (r *Router) HandleWebSocket(prefix string, h WebSocketHandler) {
	r.websocket[prefix] = h
}

// HandleStream registers h for post-hello stream connections under
// prefix.
func (r *Router) HandleStream(prefix string, h StreamHandler) {
	r.stream[prefix] = h
}

// SetDefaultHTTP overrides the fallback handler for unmatched HTTP paths.
func (r *Router) SetDefaultHTTP(h http.Handler) { r.defaultHTTP = h }

// ServeHTTP dispatches an incoming request: a WebSocket upgrade request
// matches against the WebSocket registry, everything else against the
// plain HTTP registry, both by longest matching path prefix.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if websocket.IsWebSocketUpgrade(req) {
		if prefix, h, ok := longestMatch(r.websocket, req.URL.Path); ok {
			conn, err := r.upgrader.Upgrade(w, req, nil)
			if err != nil {
				r.logger.Printf("websocket upgrade failed for %s: %v", prefix, err)
				return
			}
			h(conn, req)
			return
		}
	}

	if prefix, h, ok := longestMatch(r.http, req.URL.Path); ok {
		_ = prefix
		h.ServeHTTP(w, req)
		return
	}
	r.defaultHTTP.ServeHTTP(w, req)
}

// DispatchStream looks up and invokes the stream handler registered for
// path, following the same longest-prefix rule as HTTP/WebSocket. It
// returns false if no stream route matches.
func (r *Router) DispatchStream(path string, conn *websocket.Conn, hello Hello) bool {
	prefix, h, ok := longestMatch(r.stream, path)
	if !ok {
		return false
	}
	_ = prefix
	h(conn, hello)
	return true
}

func longestMatch[H any](registry map[string]H, path string) (string, H, bool) {
	var best string
	var bestHandler H
	found := false

	prefixes := make([]string, 0, len(registry))
	for p := range registry {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			best = p
			bestHandler = registry[p]
			found = true
			break
		}
	}
	return best, bestHandler, found
}
