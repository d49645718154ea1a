package mesh

// Conn abstracts one established, already-encrypted mesh stream: the
// hello exchange and KEM handshake (pkg/comms) have already completed,
// and everything that crosses it from here on is a Message. Keeping the
// protocol layer against this narrow interface — rather than a concrete
// *websocket.Conn or net.Conn — lets pkg/mesh/server and pkg/mesh/client
// be driven in tests over an in-memory pipe, the way the teacher's
// PeerManager is an interface HTTPPeerManager implements rather than a
// concrete transport type baked into the consensus coordinator.
type Conn interface {
	Send(Message) error
	Receive() (Message, error)
	Close() error
}
