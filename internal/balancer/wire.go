package balancer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Broadcast framing for the post-build state: a status byte, then for
// a successful build the imbalance, the per-worker count vector and
// the tree image, each field explicit and little-endian. Failures
// replicate too, so every rank leaves the collective with the same
// verdict instead of hanging.
const (
	statusOK         uint8 = 0
	statusDegenerate uint8 = 1
	statusFailed     uint8 = 2
)

type wireState struct {
	degenerate bool
	failMsg    string
	imbalance  float64
	counts     []int64
	image      []byte
}

func encodeState(imbalance float64, counts []int64, image []byte) []byte {
	buf := make([]byte, 0, 1+8+4+8*len(counts)+len(image))
	buf = append(buf, statusOK)

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(imbalance))
	buf = append(buf, scratch[:]...)

	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(counts)))
	buf = append(buf, scratch[:4]...)
	for _, c := range counts {
		binary.LittleEndian.PutUint64(scratch[:], uint64(c))
		buf = append(buf, scratch[:]...)
	}

	return append(buf, image...)
}

func encodeDegenerate() []byte {
	return []byte{statusDegenerate}
}

func encodeFailure(err error) []byte {
	return append([]byte{statusFailed}, err.Error()...)
}

func decodeState(data []byte) (*wireState, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("empty balance state")
	}

	switch data[0] {
	case statusDegenerate:
		return &wireState{degenerate: true}, nil
	case statusFailed:
		return &wireState{failMsg: string(data[1:])}, nil
	case statusOK:
	default:
		return nil, fmt.Errorf("unknown balance state status %d", data[0])
	}

	data = data[1:]
	if len(data) < 12 {
		return nil, fmt.Errorf("balance state truncated")
	}

	s := &wireState{
		imbalance: math.Float64frombits(binary.LittleEndian.Uint64(data)),
	}
	n := int(binary.LittleEndian.Uint32(data[8:]))
	data = data[12:]

	if len(data) < 8*n {
		return nil, fmt.Errorf("balance state count vector truncated")
	}
	s.counts = make([]int64, n)
	for i := range s.counts {
		s.counts[i] = int64(binary.LittleEndian.Uint64(data[8*i:]))
	}

	s.image = data[8*n:]
	return s, nil
}
