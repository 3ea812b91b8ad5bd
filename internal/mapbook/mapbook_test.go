package mapbook

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
)

func TestNewAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.map")
	c := clock.NewFake(time.Now())
	mb := New(path, 0, 1000, mapfile.PhaseCopying, c)

	idx := mb.ChangeChunkStatus(block.Block{Pos: 0, Size: 100}, block.Finished)
	assert.Equal(t, 0, idx)

	require.NoError(t, mb.ForceSave())

	st, ok, err := mapfile.Load(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, block.Finished, st.List[0].Status)
}

func TestSaveThrottle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.map")
	c := clock.NewFake(time.Now())
	mb := New(path, 0, 1000, mapfile.PhaseCopying, c)
	mb.ChangeChunkStatus(block.Block{Pos: 0, Size: 10}, block.Finished)
	require.NoError(t, mb.Save(false))

	mb.ChangeChunkStatus(block.Block{Pos: 10, Size: 10}, block.Finished)
	require.NoError(t, mb.Save(false)) // throttled, no error either way

	c.Advance(31 * time.Second)
	mb.ChangeChunkStatus(block.Block{Pos: 20, Size: 10}, block.Finished)
	require.NoError(t, mb.Save(false))
}
