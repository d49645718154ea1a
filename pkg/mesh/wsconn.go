package mesh

import (
	"io"

	"github.com/gorilla/websocket"
)

// wsReadWriter adapts a *websocket.Conn into an io.ReadWriter of binary
// messages, so the ws and wss carriers can share StreamConn's framing and
// encryption code with the tcp carrier instead of duplicating it.
type wsReadWriter struct {
	conn   *websocket.Conn
	reader io.Reader
}

// NewWebSocketReadWriter wraps conn for use with NewStreamConn.
func NewWebSocketReadWriter(conn *websocket.Conn) io.ReadWriter {
	return &wsReadWriter{conn: conn}
}

func (w *wsReadWriter) Read(p []byte) (int, error) {
	for w.reader == nil {
		_, r, err := w.conn.NextReader()
		if err != nil {
			return 0, err
		}
		w.reader = r
	}
	n, err := w.reader.Read(p)
	if err == io.EOF {
		w.reader = nil
		if n == 0 {
			return w.Read(p)
		}
		err = nil
	}
	return n, err
}

func (w *wsReadWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsReadWriter) Close() error {
	return w.conn.Close()
}
