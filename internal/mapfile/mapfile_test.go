package mapfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
)

func TestLoadMissingIsNotError(t *testing.T) {
	st, ok, err := Load(filepath.Join(t.TempDir(), "nope.map"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, st)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.map")
	st := &State{
		List: block.List{
			{Block: block.Block{Pos: 0, Size: 100}, Status: block.Finished},
			{Block: block.Block{Pos: 100, Size: 50}, Status: block.BadSector},
		},
		CurrentPos:    100,
		CurrentStatus: PhaseCopying,
		CurrentPass:   2,
		CPassBitset:   0x0F,
	}
	require.NoError(t, Save(path, st))

	got, ok, err := Load(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st.List, got.List)
	assert.Equal(t, st.CurrentPos, got.CurrentPos)
	assert.Equal(t, st.CurrentStatus, got.CurrentStatus)
	assert.Equal(t, st.CurrentPass, got.CurrentPass)
	assert.Equal(t, st.CPassBitset, got.CPassBitset)
}

func TestLoadRejectsNonContiguous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.map")
	content := "0x00000000 ?\n0x00000000  0x00000064  +\n0x00000070  0x00000010  -\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad2.map")
	content := "0x00000000 ?\n0x00000000  0x00000064  Q\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, _, err := Load(path)
	assert.Error(t, err)
}
