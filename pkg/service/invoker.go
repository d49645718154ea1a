// Package service implements the chain's RPC dispatcher: events tagged
// with a Type metadata entry are treated as service requests, routed to a
// registered ServiceInvoker by that type name, and answered with a reply
// row parented to the request before the request itself is tombstoned.
// Generalizes the teacher's pkg/execution/executor.go adapter-wrapper
// pattern (wrap a concrete handler behind a narrow interface, let the
// caller only see request/response types) into a registry keyed by request
// type name instead of one hard-wired wrapper per handler.
package service

import (
	"context"

	"github.com/certen-mesh/atechain/pkg/comms"
)

// ServiceInvoker is one registered RPC handler.
type ServiceInvoker interface {
	// RequestTypeName is the Type metadata tag that routes a request event
	// to this invoker.
	RequestTypeName() string
	// ResponseTypeName tags a successful reply.
	ResponseTypeName() string
	// ErrorTypeName tags a reply carrying an error instead of a result.
	ErrorTypeName() string
	// DataFormat is the wire format request/response payloads are encoded
	// with.
	DataFormat() comms.WireFormat
	// Invoke handles one request payload and returns the response payload.
	Invoke(ctx context.Context, request []byte) ([]byte, error)
}
