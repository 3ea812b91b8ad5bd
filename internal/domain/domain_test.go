package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
)

func TestDomainBound(t *testing.T) {
	d := New(0, 0).Bound(1000)
	assert.Equal(t, block.Block{Pos: 0, Size: 1000}, d.Span())
}

func TestDomainRestrictToFinished(t *testing.T) {
	d := New(0, 1000)
	l := block.List{
		{Block: block.Block{Pos: 0, Size: 100}, Status: block.Finished},
		{Block: block.Block{Pos: 100, Size: 100}, Status: block.BadSector},
		{Block: block.Block{Pos: 200, Size: 800}, Status: block.Finished},
	}
	rd := RestrictToFinished(d, l)
	assert.Len(t, rd.Blocks(), 2)
	assert.Equal(t, block.Addr(0), rd.Blocks()[0].Pos)
	assert.Equal(t, block.Addr(200), rd.Blocks()[1].Pos)
}

func TestDomainBefore(t *testing.T) {
	d := New(0, 100)
	assert.True(t, d.Before(block.Block{Pos: 200, Size: 10}))
	assert.False(t, d.Before(block.Block{Pos: 50, Size: 10}))
}
