package collective

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Payload helpers: the rendezvous engine moves opaque little-endian
// byte arrays; the typed Comm wrappers and the reduce step use these
// to cross the boundary.

// EncodeInt64s encodes a vector as little-endian 8-byte words.
func EncodeInt64s(vals []int64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v))
	}
	return buf
}

// DecodeInt64s decodes a vector encoded by EncodeInt64s.
func DecodeInt64s(data []byte) ([]int64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("int64 payload length %d not a multiple of 8", len(data))
	}
	vals := make([]int64, len(data)/8)
	for i := range vals {
		vals[i] = int64(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return vals, nil
}

// EncodeInt32s encodes a vector as little-endian 4-byte words.
func EncodeInt32s(vals []int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return buf
}

// DecodeInt32s decodes a vector encoded by EncodeInt32s.
func DecodeInt32s(data []byte) ([]int32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("int32 payload length %d not a multiple of 4", len(data))
	}
	vals := make([]int32, len(data)/4)
	for i := range vals {
		vals[i] = int32(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vals, nil
}

// EncodeFloat64s encodes a real-valued vector as little-endian IEEE
// 754 words. Coordinate transfers always go through this path; they
// are never reinterpreted as integers.
func EncodeFloat64s(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64s decodes a vector encoded by EncodeFloat64s.
func DecodeFloat64s(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("float64 payload length %d not a multiple of 8", len(data))
	}
	vals := make([]float64, len(data)/8)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return vals, nil
}

// EncodeParts frames per-rank payloads for a scatter: a length prefix
// per part followed by its bytes.
func EncodeParts(parts [][]byte) []byte {
	total := 0
	for _, p := range parts {
		total += 4 + len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(p)))
		buf = append(buf, l[:]...)
		buf = append(buf, p...)
	}
	return buf
}

// DecodeParts splits a framed payload into exactly n parts.
func DecodeParts(data []byte, n int) ([][]byte, error) {
	parts := make([][]byte, 0, n)
	off := 0
	for len(parts) < n {
		if off+4 > len(data) {
			return nil, fmt.Errorf("scatter frame truncated at part %d", len(parts))
		}
		l := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+l > len(data) {
			return nil, fmt.Errorf("scatter part %d overruns frame", len(parts))
		}
		parts = append(parts, data[off:off+l])
		off += l
	}
	if off != len(data) {
		return nil, fmt.Errorf("scatter frame has %d trailing bytes", len(data)-off)
	}
	return parts, nil
}
