package partition

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire format of a tree image: a 10-byte header followed by one
// fixed-size 30-byte record per node, all little-endian. The build
// permutation is coordinator-local and never serialised.
const (
	treeMagic   uint32 = 0x42_4C_4E_44 // "DNLB"
	treeVersion uint16 = 1

	headerLen = 10
	recordLen = 30
)

// MarshalTree serialises the node array field by field.
func MarshalTree(t *Tree) []byte {
	buf := make([]byte, headerLen+recordLen*len(t.Nodes))
	binary.LittleEndian.PutUint32(buf[0:], treeMagic)
	binary.LittleEndian.PutUint16(buf[4:], treeVersion)
	binary.LittleEndian.PutUint32(buf[6:], uint32(len(t.Nodes)))

	off := headerLen
	for i := range t.Nodes {
		n := &t.Nodes[i]
		buf[off] = byte(n.Kind)
		buf[off+1] = n.Dim
		binary.LittleEndian.PutUint64(buf[off+2:], math.Float64bits(n.Split))
		binary.LittleEndian.PutUint32(buf[off+10:], uint32(n.Left))
		binary.LittleEndian.PutUint32(buf[off+14:], uint32(n.Right))
		binary.LittleEndian.PutUint32(buf[off+18:], uint32(n.First))
		binary.LittleEndian.PutUint32(buf[off+22:], uint32(n.Size))
		binary.LittleEndian.PutUint32(buf[off+26:], uint32(n.Rank))
		off += recordLen
	}
	return buf
}

// UnmarshalTree decodes a tree image and validates its structure:
// header sanity, node kinds, split dimensions, and the invariant that
// children sit at strictly larger indices than their parent.
func UnmarshalTree(data []byte) (*Tree, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("tree image truncated: %d bytes", len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:]); magic != treeMagic {
		return nil, fmt.Errorf("bad tree magic 0x%08x", magic)
	}
	if version := binary.LittleEndian.Uint16(data[4:]); version != treeVersion {
		return nil, fmt.Errorf("unsupported tree version %d", version)
	}

	count := int(binary.LittleEndian.Uint32(data[6:]))
	if len(data) != headerLen+recordLen*count {
		return nil, fmt.Errorf("tree image length %d does not match %d nodes", len(data), count)
	}

	nodes := make([]Node, count)
	off := headerLen
	for i := range nodes {
		n := &nodes[i]
		n.Kind = NodeKind(data[off])
		n.Dim = data[off+1]
		n.Split = math.Float64frombits(binary.LittleEndian.Uint64(data[off+2:]))
		n.Left = int32(binary.LittleEndian.Uint32(data[off+10:]))
		n.Right = int32(binary.LittleEndian.Uint32(data[off+14:]))
		n.First = int32(binary.LittleEndian.Uint32(data[off+18:]))
		n.Size = int32(binary.LittleEndian.Uint32(data[off+22:]))
		n.Rank = int32(binary.LittleEndian.Uint32(data[off+26:]))
		off += recordLen

		switch n.Kind {
		case KindInternal:
			if n.Dim > 2 {
				return nil, fmt.Errorf("node %d: split dimension %d out of range", i, n.Dim)
			}
			if n.Left <= int32(i) || n.Right <= int32(i) || int(n.Left) >= count || int(n.Right) >= count {
				return nil, fmt.Errorf("node %d: child indices %d/%d violate ordering", i, n.Left, n.Right)
			}
		case KindLeaf:
			if n.Size < 0 || n.First < 0 {
				return nil, fmt.Errorf("node %d: negative leaf range [%d, +%d)", i, n.First, n.Size)
			}
		default:
			return nil, fmt.Errorf("node %d: unknown kind %d", i, n.Kind)
		}
	}

	return &Tree{Nodes: nodes}, nil
}
