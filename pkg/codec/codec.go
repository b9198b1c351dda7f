// Package codec holds the encodings the forwarder can put on the wire.
//
// Both encodings are self-describing and deterministic: the same value
// always produces the same bytes. JSON is the default because it is what
// the console decodes; CBOR is available for collectors that prefer a
// compact binary form. Wire types carry `json` struct tags only, which
// the CBOR encoder reads as a fallback, so field names match across
// both encodings.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes and decodes wire messages.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

// ByName returns the codec registered under name ("json" or "cbor").
// An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	}
	return nil, fmt.Errorf("codec: unknown encoding %q", name)
}
