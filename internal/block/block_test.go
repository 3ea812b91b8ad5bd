package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockOverlapsAndIncludes(t *testing.T) {
	a := Block{Pos: 0, Size: 100}
	b := Block{Pos: 50, Size: 100}
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Includes(b))
	assert.True(t, a.Includes(Block{Pos: 10, Size: 10}))
}

func TestBlockJoin(t *testing.T) {
	a := Block{Pos: 0, Size: 10}
	b := Block{Pos: 10, Size: 5}
	require.True(t, a.Joinable(b))
	joined := a.Join(b)
	assert.Equal(t, Block{Pos: 0, Size: 15}, joined)
}

func TestBlockIntersect(t *testing.T) {
	a := Block{Pos: 0, Size: 100}
	b := Block{Pos: 80, Size: 100}
	got := a.Intersect(b)
	assert.Equal(t, Block{Pos: 80, Size: 20}, got)

	c := Block{Pos: 200, Size: 10}
	assert.True(t, a.Intersect(c).Empty())
}

func TestListSplitAndChangeChunkStatus(t *testing.T) {
	l := NewList(0, 1000, NonTried)
	l, idx := l.ChangeChunkStatus(Block{Pos: 100, Size: 200}, Finished)
	require.Len(t, l, 3)
	assert.Equal(t, 1, idx)
	assert.Equal(t, Finished, l[1].Status)
	assert.Equal(t, Block{Pos: 100, Size: 200}, l[1].Block)
	l.checkInvariants()
}

func TestListCompactIdempotent(t *testing.T) {
	l := List{
		{Block{0, 10}, Finished},
		{Block{10, 10}, Finished},
		{Block{20, 10}, BadSector},
	}
	c1 := l.Compact()
	c2 := c1.Compact()
	assert.Equal(t, c1, c2)
	assert.Len(t, c1, 2)
}

func TestListFindChunkAndRfindChunk(t *testing.T) {
	l := List{
		{Block{0, 10}, Finished},
		{Block{10, 10}, NonTried},
		{Block{20, 10}, NonTried},
		{Block{30, 10}, Finished},
	}
	got := l.FindChunk(Block{0, 40}, NonTried)
	assert.Equal(t, Block{10, 20}, got)

	r := l.RfindChunk(Block{0, 40}, NonTried)
	assert.Equal(t, Block{10, 20}, r)
}

func TestListTruncateVectorPad(t *testing.T) {
	l := NewList(0, 100, Finished)
	l = l.TruncateVector(150, true)
	assert.Len(t, l, 2)
	assert.Equal(t, NonTried, l[1].Status)
	assert.Equal(t, Addr(150), l.Range().End())
}

func TestListTruncateVectorClip(t *testing.T) {
	l := NewList(0, 100, Finished)
	l = l.TruncateVector(50, false)
	assert.Len(t, l, 1)
	assert.Equal(t, Addr(50), l.Range().End())
}

func TestStatusLattice(t *testing.T) {
	assert.True(t, NonTried.Less(NonTrimmed))
	assert.True(t, BadSector.Less(Finished))
	assert.False(t, Finished.Less(NonTried))
}
