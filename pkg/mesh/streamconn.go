package mesh

import (
	"io"
	"sync"

	"github.com/certen-mesh/atechain/pkg/comms"
	"github.com/certen-mesh/atechain/pkg/crypto/symmetric"
)

// StreamConn adapts any framed byte stream (a *websocket.Conn's message
// stream, a net.Conn from net.Pipe, ...) into a mesh.Conn: it applies the
// 32-bit payload framing and wire-format encoding from pkg/comms, plus
// optional AES-CTR encryption once a handshake has produced a shared key.
// Send is safe for concurrent use — a mesh server's per-subscriber forward
// loop and its main request-handling goroutine can both write to the same
// connection.
type StreamConn struct {
	rw     io.ReadWriter
	format comms.WireFormat
	key    *symmetric.EncryptKey // nil means the stream is unencrypted

	sendMu sync.Mutex
}

// NewStreamConn wraps rw. A nil key means payloads are sent in the clear —
// used for loopback tests and for carriers where TLS already provides
// confidentiality.
func NewStreamConn(rw io.ReadWriter, format comms.WireFormat, key *symmetric.EncryptKey) *StreamConn {
	return &StreamConn{rw: rw, format: format, key: key}
}

func (c *StreamConn) Send(m Message) error {
	b, err := c.format.Encode(m)
	if err != nil {
		return err
	}
	if c.key != nil {
		b, err = comms.EncryptPayload(*c.key, b)
		if err != nil {
			return err
		}
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return comms.WritePayloadFrame(c.rw, b)
}

func (c *StreamConn) Receive() (Message, error) {
	b, err := comms.ReadPayloadFrame(c.rw)
	if err != nil {
		return Message{}, err
	}
	if c.key != nil {
		b, err = comms.DecryptPayload(*c.key, b)
		if err != nil {
			return Message{}, err
		}
	}
	return DecodeMessage(c.format, b)
}

func (c *StreamConn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
