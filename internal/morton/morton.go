// Package morton maps 3D points to Z-order (Morton) keys and produces
// the space-filling-curve ordering used by the one-shot balancer.
package morton

// BitsPerAxis is the quantisation width of each coordinate axis.
// Three interleaved axes give 30 significant key bits, which fits a
// uint32 key for 2^30 total cells.
const BitsPerAxis = 10

// binsPerAxis is the number of quantisation bins per axis.
const binsPerAxis = 1 << BitsPerAxis

// Box is an axis-aligned bounding box.
type Box struct {
	Lo [3]float64
	Hi [3]float64
}

// BoundsOf computes the bounding box of the given coordinate arrays.
// The arrays must have equal length; an empty input yields a zero Box.
func BoundsOf(x, y, z []float64) Box {
	if len(x) == 0 {
		return Box{}
	}

	b := Box{
		Lo: [3]float64{x[0], y[0], z[0]},
		Hi: [3]float64{x[0], y[0], z[0]},
	}
	for i := 1; i < len(x); i++ {
		b.include(0, x[i])
		b.include(1, y[i])
		b.include(2, z[i])
	}
	return b
}

func (b *Box) include(dim int, v float64) {
	if v < b.Lo[dim] {
		b.Lo[dim] = v
	}
	if v > b.Hi[dim] {
		b.Hi[dim] = v
	}
}

// Extent returns the box extent along the given axis.
func (b Box) Extent(dim int) float64 {
	return b.Hi[dim] - b.Lo[dim]
}

// Volume returns the box volume.
func (b Box) Volume() float64 {
	return b.Extent(0) * b.Extent(1) * b.Extent(2)
}

// bin linearly quantises v into [0, binsPerAxis). A degenerate extent
// maps every value to bin 0, keeping the ordering well-defined.
func bin(v, lo, extent float64) uint32 {
	if extent <= 0 {
		return 0
	}
	b := int32((v - lo) / extent * binsPerAxis)
	if b < 0 {
		return 0
	}
	if b >= binsPerAxis {
		return binsPerAxis - 1
	}
	return uint32(b)
}

// dilate spreads the low 10 bits of v so that bit i lands on bit 3i.
func dilate(v uint32) uint32 {
	v = (v | v<<16) & 0x030000FF
	v = (v | v<<8) & 0x0300F00F
	v = (v | v<<4) & 0x030C30C3
	v = (v | v<<2) & 0x09249249
	return v
}

// Key computes the Morton key of a point inside box. Bit i of the x bin
// becomes key bit 3i, y bit 3i+1, z bit 3i+2.
func Key(box Box, px, py, pz float64) uint32 {
	bx := bin(px, box.Lo[0], box.Extent(0))
	by := bin(py, box.Lo[1], box.Extent(1))
	bz := bin(pz, box.Lo[2], box.Extent(2))
	return dilate(bx) | dilate(by)<<1 | dilate(bz)<<2
}
