// Package encoding provides serialization adapters for tonk. It
// implements OutputEncoder for JSON and TOON (Token-Optimized Object
// Notation) formats, used by the CLI's --format flag and by the host
// bridge's metadata decoding.
package encoding

import (
	"encoding/json"

	"github.com/toon-format/toon-go"

	"github.com/tonk-labs/tonk/internal/core/usecases"
)

// Ensure Encoder implements usecases.OutputEncoder interface.
var _ usecases.OutputEncoder = (*Encoder)(nil)

// Encoder provides JSON and TOON encoding/decoding.
type Encoder struct{}

// NewEncoder creates a new Encoder instance.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeJSON serializes a value to JSON bytes.
func (e *Encoder) EncodeJSON(value any) ([]byte, error) {
	return json.Marshal(value)
}

// DecodeJSON deserializes JSON bytes to a value.
func (e *Encoder) DecodeJSON(data []byte, value any) error {
	return json.Unmarshal(data, value)
}

// EncodeTOON serializes a value to TOON format via toon-format/toon-go,
// used for the CLI's --format toon output of ValidationResults and
// directory listings.
func (e *Encoder) EncodeTOON(value any) ([]byte, error) {
	return toon.Marshal(value)
}

// DecodeTOON deserializes TOON format to a value.
func (e *Encoder) DecodeTOON(data []byte, value any) error {
	return toon.Unmarshal(data, value)
}
