package commsutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/morezero/workspace-bus/pkg/cmderr"
)

// Payload is an opaque encoded value carried by a command or its response.
// A nil Payload means no payload was supplied.
type Payload []byte

// MarshalJSON embeds the payload as raw JSON so envelopes stay readable on the wire.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(p).MarshalJSON()
}

// UnmarshalJSON keeps the raw JSON bytes; "null" becomes a nil Payload.
func (p *Payload) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	*p = append((*p)[:0], data...)
	return nil
}

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) (Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, cmderr.New(cmderr.KindDecode, "encode %T: %v", v, err)
	}
	return data, nil
}

// DecodePayload deserializes JSON bytes into the given target. Unknown fields,
// trailing data and empty payloads are rejected so that decoding with a type
// other than the one used to encode is reported rather than silently accepted.
func DecodePayload(data Payload, v interface{}) error {
	if len(data) == 0 {
		return cmderr.New(cmderr.KindDecode, "decode %T: empty payload", v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return cmderr.New(cmderr.KindDecode, "decode %T: %v", v, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return cmderr.New(cmderr.KindDecode, "decode %T: trailing data after value", v)
	}
	return nil
}

// Encode is the typed form of EncodePayload.
func Encode[T any](v T) (Payload, error) {
	return EncodePayload(v)
}

// Decode decodes a payload into a new value of type T.
func Decode[T any](data Payload) (T, error) {
	var out T
	if err := DecodePayload(data, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// MustEncode encodes v and panics on failure. Only for values known to be encodable.
func MustEncode(v interface{}) Payload {
	p, err := EncodePayload(v)
	if err != nil {
		panic(fmt.Sprintf("commsutil:codec - %v", err))
	}
	return p
}
