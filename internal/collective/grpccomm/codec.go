// Package grpccomm runs the collective contract over gRPC: the
// coordinator rank hosts the rendezvous hub behind a single Exchange
// RPC and the remaining ranks dial in. Payloads are opaque byte
// arrays, so the service uses a gob codec and a handwritten service
// descriptor instead of generated protobuf stubs.
package grpccomm

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// codecName selects the gob codec via the gRPC content-subtype.
const codecName = "dynlb-gob"

// gobCodec implements grpc/encoding.Codec over encoding/gob.
type gobCodec struct{}

// Marshal encodes v with gob.
func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v with gob.
func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Name returns the codec's content-subtype name.
func (gobCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// exchangeRequest is one rank's contribution to a collective round.
type exchangeRequest struct {
	Op      uint8
	Rank    int32
	Payload []byte
}

// exchangeResponse carries the rank's share of the round result.
type exchangeResponse struct {
	Payload []byte
}
