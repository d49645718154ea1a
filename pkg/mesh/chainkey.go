// Package mesh implements the subscription/replication protocol that ties
// independent chain-of-trust instances into one logical mesh: message
// types, chain-key addressing, and the server/client halves of the
// subscribe/feed/lock flow (in the pkg/mesh/server and pkg/mesh/client
// subpackages).
package mesh

import (
	"fmt"
	"net/url"
	"strconv"
)

// Carrier identifies the transport a ChainKey addresses.
type Carrier string

const (
	CarrierTCP Carrier = "tcp"
	CarrierWS  Carrier = "ws"
	CarrierWSS Carrier = "wss"
)

// defaultPort returns the implied port for a carrier when the URL omits
// one, per the external-interfaces chain-key scheme.
func defaultPort(c Carrier) (int, error) {
	switch c {
	case CarrierTCP:
		return 5000, nil
	case CarrierWS:
		return 80, nil
	case CarrierWSS:
		return 443, nil
	default:
		return 0, fmt.Errorf("mesh: unknown carrier %q", c)
	}
}

// ChainKey addresses one chain on one mesh node: <scheme>://<host>[:<port>]/<path>,
// where path names the chain.
type ChainKey struct {
	Carrier Carrier
	Host    string
	Port    int
	Chain   string
}

// ParseChainKey parses the URL form of a chain key.
func ParseChainKey(s string) (ChainKey, error) {
	u, err := url.Parse(s)
	if err != nil {
		return ChainKey{}, fmt.Errorf("mesh: parse chain key: %w", err)
	}
	carrier := Carrier(u.Scheme)
	switch carrier {
	case CarrierTCP, CarrierWS, CarrierWSS:
	default:
		return ChainKey{}, fmt.Errorf("mesh: unsupported chain key scheme %q", u.Scheme)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return ChainKey{}, fmt.Errorf("mesh: invalid port in chain key %q: %w", s, err)
		}
	} else {
		port, err = defaultPort(carrier)
		if err != nil {
			return ChainKey{}, err
		}
	}

	chain := u.Path
	for len(chain) > 0 && chain[0] == '/' {
		chain = chain[1:]
	}
	if chain == "" {
		return ChainKey{}, fmt.Errorf("mesh: chain key %q has no chain path", s)
	}

	return ChainKey{Carrier: carrier, Host: u.Hostname(), Port: port, Chain: chain}, nil
}

// String renders the canonical URL form of the chain key.
func (k ChainKey) String() string {
	return fmt.Sprintf("%s://%s:%d/%s", k.Carrier, k.Host, k.Port, k.Chain)
}

// Address returns the host:port dial address, independent of scheme.
func (k ChainKey) Address() string {
	return fmt.Sprintf("%s:%d", k.Host, k.Port)
}
