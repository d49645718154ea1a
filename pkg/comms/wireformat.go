package comms

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// WireFormat selects how payload frame bodies are serialized.
type WireFormat string

const (
	WireJSON    WireFormat = "json"
	WireMsgPack WireFormat = "msgpack"
)

// Encode serializes v using the format named by f.
func (f WireFormat) Encode(v any) ([]byte, error) {
	switch f {
	case WireMsgPack:
		b, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("comms: msgpack encode: %w", err)
		}
		return b, nil
	case WireJSON, "":
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("comms: json encode: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("comms: unknown wire format %q", f)
	}
}

// Decode deserializes b into v using the format named by f.
func (f WireFormat) Decode(b []byte, v any) error {
	switch f {
	case WireMsgPack:
		if err := msgpack.Unmarshal(b, v); err != nil {
			return fmt.Errorf("comms: msgpack decode: %w", err)
		}
		return nil
	case WireJSON, "":
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("comms: json decode: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("comms: unknown wire format %q", f)
	}
}
