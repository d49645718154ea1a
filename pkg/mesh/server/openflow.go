package server

// Decision is what an OpenFlow returns for a subscribe request against an
// unknown chain.
type Decision int

const (
	// Create opens (or creates) the chain locally and proceeds with the
	// subscription.
	Create Decision = iota
	// Reject answers the subscriber with NotThisRoot.
	Reject
	// Redirect answers the subscriber with NotThisRoot, the spec's
	// mechanism for "ask elsewhere" — a redirect carries no separate
	// message variant and no target address, so the client re-resolves
	// the chain key out of band (the mesh server handles Redirect exactly
	// like Reject).
	Redirect
)

// OpenFlow decides what a mesh server does when a Subscribe arrives for a
// chain it does not currently hold open.
type OpenFlow interface {
	Open(chainName string) (Decision, error)
}

// OpenFlowFunc adapts a function to OpenFlow.
type OpenFlowFunc func(chainName string) (Decision, error)

func (f OpenFlowFunc) Open(chainName string) (Decision, error) { return f(chainName) }

// AlwaysCreate is the permissive default: every subscribe request opens a
// fresh ephemeral chain if one isn't already registered.
var AlwaysCreate OpenFlow = OpenFlowFunc(func(string) (Decision, error) { return Create, nil })

// AlwaysReject never auto-opens a chain; only chains pre-registered via
// Server.Register are reachable.
var AlwaysReject OpenFlow = OpenFlowFunc(func(string) (Decision, error) { return Reject, nil })
