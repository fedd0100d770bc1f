package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlicePool(t *testing.T) {
	p := NewSlicePool[int](8)

	s := p.Get()
	*s = append(*s, 1, 2, 3)
	assert.Len(t, *s, 3)
	p.Put(s)

	s2 := p.Get()
	assert.Len(t, *s2, 0)
	p.Put(s2)
}

func TestInt32SlicePool(t *testing.T) {
	s := GetInt32Slice()
	*s = append(*s, 42)
	PutInt32Slice(s)

	s2 := GetInt32Slice()
	assert.Len(t, *s2, 0)
	PutInt32Slice(s2)
}
