package mapops

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
)

func list(span block.Block, parts ...block.Sblock) block.List {
	return buildList(span, parts)
}

func TestAnd(t *testing.T) {
	span := block.Block{Pos: 0, Size: 1024}
	dom := domain.New(0, 1024)
	a := list(span, block.Sblock{Block: block.Block{Pos: 0, Size: 512}, Status: block.Finished})
	b := list(span, block.Sblock{Block: block.Block{Pos: 0, Size: 256}, Status: block.Finished})

	out := And(dom, a, b)
	assert.Equal(t, block.Finished, out[out.FindIndex(0)].Status)
	assert.Equal(t, block.BadSector, out[out.FindIndex(256)].Status)
	assert.Equal(t, block.BadSector, out[out.FindIndex(512)].Status)
}

func TestOr(t *testing.T) {
	span := block.Block{Pos: 0, Size: 1024}
	dom := domain.New(0, 1024)
	a := list(span, block.Sblock{Block: block.Block{Pos: 0, Size: 256}, Status: block.Finished})
	b := list(span, block.Sblock{Block: block.Block{Pos: 512, Size: 256}, Status: block.Finished})

	out := Or(dom, a, b)
	assert.Equal(t, block.Finished, out[out.FindIndex(0)].Status)
	assert.Equal(t, block.NonTried, out[out.FindIndex(256)].Status)
	assert.Equal(t, block.Finished, out[out.FindIndex(512)].Status)
}

func TestXorRequiresMatchingExtent(t *testing.T) {
	dom := domain.New(0, 512)
	a := block.NewList(0, 512, block.Finished)
	b := block.NewList(0, 1024, block.Finished)
	_, err := Xor(dom, a, b)
	require.Error(t, err)
}

func TestChangeTypesAndInvert(t *testing.T) {
	l := block.List{
		{Block: block.Block{Pos: 0, Size: 10}, Status: block.NonTried},
		{Block: block.Block{Pos: 10, Size: 10}, Status: block.Finished},
	}
	out, err := ChangeTypes(l, "?+", "+-")
	require.NoError(t, err)
	assert.Equal(t, block.Finished, out[0].Status)
	assert.Equal(t, block.BadSector, out[1].Status)

	inv, err := Invert(l)
	require.NoError(t, err)
	assert.Equal(t, block.Finished, inv[0].Status)
	assert.Equal(t, block.BadSector, inv[1].Status)
}

func TestCompare(t *testing.T) {
	dom := domain.New(0, 1024)
	a := block.NewList(0, 1024, block.Finished)
	b := block.NewList(0, 1024, block.Finished)
	assert.True(t, Compare(dom, a, b))

	c := block.List{
		{Block: block.Block{Pos: 0, Size: 512}, Status: block.Finished},
		{Block: block.Block{Pos: 512, Size: 512}, Status: block.BadSector},
	}
	assert.False(t, Compare(dom, a, c))
}

func TestCreateFromBadBlocks(t *testing.T) {
	r := strings.NewReader("1\n3\n")
	span := block.Block{Pos: 0, Size: 4 * 512}
	out, err := CreateFromBadBlocks(r, span, 512, block.BadSector, block.Finished)
	require.NoError(t, err)
	assert.Equal(t, block.Finished, out[out.FindIndex(0)].Status)
	assert.Equal(t, block.BadSector, out[out.FindIndex(512)].Status)
	assert.Equal(t, block.Finished, out[out.FindIndex(1024)].Status)
	assert.Equal(t, block.BadSector, out[out.FindIndex(1536)].Status)
}

func TestListBlocks(t *testing.T) {
	dom := domain.New(0, 2048)
	l := block.List{
		{Block: block.Block{Pos: 0, Size: 512}, Status: block.Finished},
		{Block: block.Block{Pos: 512, Size: 512}, Status: block.BadSector},
		{Block: block.Block{Pos: 1024, Size: 1024}, Status: block.Finished},
	}
	out, err := ListBlocks(dom, l, 512, "-", 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, out)
}

func TestShowStatusErrsize(t *testing.T) {
	dom := domain.New(0, 1024)
	l := block.List{
		{Block: block.Block{Pos: 0, Size: 512}, Status: block.Finished},
		{Block: block.Block{Pos: 512, Size: 512}, Status: block.BadSector},
	}
	summaries, errsize := ShowStatus(dom, l)
	assert.Equal(t, block.Addr(512), errsize)
	assert.Len(t, summaries, 2)
}

func TestDoneStatus(t *testing.T) {
	dom := domain.New(0, 1024)
	done := block.NewList(0, 1024, block.Finished)
	assert.True(t, DoneStatus(dom, done))

	notDone := block.List{
		{Block: block.Block{Pos: 0, Size: 512}, Status: block.Finished},
		{Block: block.Block{Pos: 512, Size: 512}, Status: block.BadSector},
	}
	assert.False(t, DoneStatus(dom, notDone))
}
