package fill

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
	"github.com/maghoff/ddrescue-dvdcss/internal/interrupt"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapbook"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
)

// memDevice is a minimal in-memory ioadapter.Reader/Writer for exercising
// Fillbook without real device I/O.
type memDevice struct{ data []byte }

func newMemDevice(data []byte) *memDevice { return &memDevice{data: data} }

func (d *memDevice) Size() (int64, error) { return int64(len(d.data)), nil }

func (d *memDevice) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, d.data[off:])
	return n, nil
}

func (d *memDevice) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(d.data)) {
		grown := make([]byte, end)
		copy(grown, d.data)
		d.data = grown
	}
	return copy(d.data[off:], p), nil
}

func (d *memDevice) Sync() error { return nil }

func newTestBook(t *testing.T, size int64, cfg Config) (*Book, *memDevice, *mapbook.Mapbook) {
	out := newMemDevice(make([]byte, size))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "fill.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseCopying, c)
	dom := domain.New(0, block.Addr(size))
	flag := interrupt.New()
	b, err := New(mb, out, dom, cfg, nil, c, flag)
	require.NoError(t, err)
	return b, out, mb
}

func TestFillOverwritesSelectedStatusOnly(t *testing.T) {
	size := int64(4096)
	cfg := Config{Selector: "-", Cluster: 1, HardBS: 512}
	b, out, mb := newTestBook(t, size, cfg)

	mb.ChangeChunkStatus(block.Block{Pos: 512, Size: 512}, block.BadSector)
	require.NoError(t, b.ReadPattern(newMemDevice([]byte("XY"))))
	require.NoError(t, b.Run())

	for i, v := range out.data {
		if i >= 512 && i < 1024 {
			assert.Equal(t, byte('X'+(i%2)), v, "offset %d", i)
		} else {
			assert.Equal(t, byte(0), v, "offset %d", i)
		}
	}
}

func TestFillResumesFromCurrentPos(t *testing.T) {
	size := int64(4096)
	cfg := Config{Selector: "?", Cluster: 1, HardBS: 512}
	b, out, mb := newTestBook(t, size, cfg)
	require.NoError(t, b.ReadPattern(newMemDevice([]byte{0xAA})))

	mb.SetCurrentPos(2048)
	require.NoError(t, b.Run())

	for i := 0; i < 2048; i++ {
		assert.Equal(t, byte(0), out.data[i], "offset %d should be untouched", i)
	}
	for i := 2048; i < 4096; i++ {
		assert.Equal(t, byte(0xAA), out.data[i], "offset %d should be filled", i)
	}
}

func TestFillSkipsGapsOutsideRestrictedDomain(t *testing.T) {
	size := int64(4096)
	out := newMemDevice(make([]byte, size))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "fill.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseCopying, c)
	mb.ChangeChunkStatus(block.Block{Pos: 0, Size: block.Addr(size)}, block.BadSector)

	full := domain.New(0, block.Addr(size))
	finished := block.List{
		{Block: block.Block{Pos: 0, Size: 2048}, Status: block.NonTried},
		{Block: block.Block{Pos: 2048, Size: 2048}, Status: block.Finished},
	}
	dom := domain.RestrictToFinished(full, finished)

	flag := interrupt.New()
	cfg := Config{Selector: "-", Cluster: 1, HardBS: 512}
	b, err := New(mb, out, dom, cfg, nil, c, flag)
	require.NoError(t, err)
	require.NoError(t, b.ReadPattern(newMemDevice([]byte{0xAA})))
	require.NoError(t, b.Run())

	for i := 0; i < 2048; i++ {
		assert.Equal(t, byte(0), out.data[i], "offset %d outside the restricted domain should be untouched", i)
	}
	for i := 2048; i < 4096; i++ {
		assert.Equal(t, byte(0xAA), out.data[i], "offset %d", i)
	}
}

func TestFillRejectsUnknownSelector(t *testing.T) {
	size := int64(4096)
	cfg := Config{Selector: "x", Cluster: 1, HardBS: 512}
	_, _, _ = newTestBookExpectError(t, size, cfg)
}

func newTestBookExpectError(t *testing.T, size int64, cfg Config) (*Book, *memDevice, *mapbook.Mapbook) {
	out := newMemDevice(make([]byte, size))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "fill.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseCopying, c)
	dom := domain.New(0, block.Addr(size))
	flag := interrupt.New()
	_, err := New(mb, out, dom, cfg, nil, c, flag)
	require.Error(t, err)
	return nil, out, mb
}
