package rescue

import (
	"math/rand"
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

func newTestBook(t *testing.T, size int64, data []byte, cfg Config) (*Book, *memDevice, *mapbook.Mapbook) {
	src := newMemDevice(data)
	dst := newMemDevice(make([]byte, 0))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "test.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseCopying, c)
	dom := domain.New(0, block.Addr(size))
	flag := interrupt.New()
	b := New(mb, src, dst, dom, cfg, nil, c, flag)
	return b, dst, mb
}

func defaultCfg() Config {
	return Config{
		HardBS:      512,
		Cluster:     8,
		CPassBitset: 0x0F,
		MaxRetries:  2,
	}
}

func TestCleanCopy(t *testing.T) {
	size := int64(1 << 20)
	data := make([]byte, size)
	rand.New(rand.NewSource(1)).Read(data)

	b, dst, mb := newTestBook(t, size, data, defaultCfg())
	require.NoError(t, b.Run())

	list := mb.List()
	require.Len(t, list, 1)
	assert.Equal(t, block.Finished, list[0].Status)
	assert.Equal(t, data, dst.data[:size])
}

func TestSingleBadSector(t *testing.T) {
	size := int64(1 << 20)
	data := make([]byte, size)
	rand.New(rand.NewSource(2)).Read(data)

	b, _, mb := newTestBook(t, size, data, defaultCfg())
	b.reader.(*memDevice).setBadRange(4096, 4608)

	require.NoError(t, b.Run())

	list := mb.List()
	for _, sb := range list {
		if sb.Pos == 4096 {
			assert.Equal(t, block.BadSector, sb.Status)
			assert.Equal(t, block.Addr(512), sb.Size)
		} else {
			assert.Equal(t, block.Finished, sb.Status, "%v", sb)
		}
	}
}

func TestSkipThenTrimThenScrape(t *testing.T) {
	size := int64(10 << 20)
	data := make([]byte, size)
	rand.New(rand.NewSource(4)).Read(data)
	cfg := defaultCfg()
	cfg.SkipBS = 64 * 1024
	cfg.MaxSkipBS = 1 << 20

	b, dst, mb := newTestBook(t, size, data, cfg)
	b.reader.(*memDevice).setBadRange(1<<20, 2<<20)

	require.NoError(t, b.Run())

	list := mb.List()
	statusAt := func(pos block.Addr) block.Status {
		return list[list.FindIndex(pos)].Status
	}
	for pos := block.Addr(0); pos < block.Addr(size); pos += 4096 {
		if pos >= 1<<20 && pos < 2<<20 {
			assert.Equal(t, block.BadSector, statusAt(pos), "pos %#x", pos)
		} else {
			assert.Equal(t, block.Finished, statusAt(pos), "pos %#x", pos)
			assert.Equal(t, data[pos:pos+4096], dst.data[pos:pos+4096], "pos %#x", pos)
		}
	}
}

func TestDomainMapfileRestrictionSkipsGaps(t *testing.T) {
	size := int64(3 << 20)
	data := make([]byte, size)
	rand.New(rand.NewSource(5)).Read(data)

	src := newMemDevice(data)
	dst := newMemDevice(make([]byte, 0))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "restrict.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseCopying, c)

	// Restrict the domain to the outer two thirds, carving a gap out of
	// the middle third, as -m/--domain-mapfile does against another
	// mapfile's finished Sblocks.
	full := domain.New(0, block.Addr(size))
	third := block.Addr(size) / 3
	finished := block.List{
		{Block: block.Block{Pos: 0, Size: third}, Status: block.Finished},
		{Block: block.Block{Pos: third, Size: third}, Status: block.NonTried},
		{Block: block.Block{Pos: 2 * third, Size: third}, Status: block.Finished},
	}
	dom := domain.RestrictToFinished(full, finished)

	flag := interrupt.New()
	b := New(mb, src, dst, dom, defaultCfg(), nil, c, flag)
	require.NoError(t, b.Run())

	list := mb.List()
	statusAt := func(pos block.Addr) block.Status {
		return list[list.FindIndex(pos)].Status
	}
	gapStart, gapEnd := block.Addr(size)/3, 2*block.Addr(size)/3
	for pos := block.Addr(0); pos < block.Addr(size); pos += 4096 {
		if pos >= gapStart && pos < gapEnd {
			assert.Equal(t, block.NonTried, statusAt(pos), "gap pos %#x should be untouched", pos)
			assert.Equal(t, byte(0), dst.data[pos], "gap pos %#x should never have been written", pos)
		} else {
			assert.Equal(t, block.Finished, statusAt(pos), "pos %#x", pos)
			assert.Equal(t, data[pos:pos+4096], dst.data[pos:pos+4096], "pos %#x", pos)
		}
	}
}

func TestRetrimRemapsBadSectorAndRewindsPhase(t *testing.T) {
	size := int64(1 << 20)
	data := make([]byte, size)
	rand.New(rand.NewSource(6)).Read(data)

	src := newMemDevice(data)
	dst := newMemDevice(make([]byte, 0))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "retrim.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseFinished, c)
	mb.ChangeChunkStatus(block.Block{Pos: 0, Size: block.Addr(size)}, block.Finished)
	mb.ChangeChunkStatus(block.Block{Pos: 4096, Size: 512}, block.BadSector)

	dom := domain.New(0, block.Addr(size))
	flag := interrupt.New()
	cfg := defaultCfg()
	cfg.Retrim = true
	b := New(mb, src, dst, dom, cfg, nil, c, flag)

	require.NoError(t, b.Run())

	for _, sb := range mb.List() {
		assert.Equal(t, block.Finished, sb.Status, "%v", sb)
	}
	assert.Equal(t, data[4096:4096+512], dst.data[4096:4096+512])
}

func TestTryAgainRemapsAndRewindsToCopying(t *testing.T) {
	size := int64(1 << 20)
	data := make([]byte, size)
	rand.New(rand.NewSource(7)).Read(data)

	src := newMemDevice(data)
	dst := newMemDevice(make([]byte, 0))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "tryagain.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseFinished, c)
	mb.ChangeChunkStatus(block.Block{Pos: 0, Size: block.Addr(size)}, block.Finished)
	mb.ChangeChunkStatus(block.Block{Pos: 8192, Size: 4096}, block.NonTrimmed)
	mb.ChangeChunkStatus(block.Block{Pos: 100000, Size: 4096}, block.NonScraped)

	dom := domain.New(0, block.Addr(size))
	flag := interrupt.New()
	cfg := defaultCfg()
	cfg.TryAgain = true
	b := New(mb, src, dst, dom, cfg, nil, c, flag)

	require.NoError(t, b.Run())

	for _, sb := range mb.List() {
		assert.Equal(t, block.Finished, sb.Status, "%v", sb)
	}
	assert.Equal(t, data[8192:8192+4096], dst.data[8192:8192+4096])
	assert.Equal(t, data[100000:100000+4096], dst.data[100000:100000+4096])
}

func TestInterruptPersistsAndResumes(t *testing.T) {
	size := int64(1 << 20)
	data := make([]byte, size)
	rand.New(rand.NewSource(3)).Read(data)

	src := newMemDevice(data)
	dst := newMemDevice(make([]byte, 0))
	c := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "resume.map")
	mb := mapbook.New(path, 0, block.Addr(size), mapfile.PhaseCopying, c)
	dom := domain.New(0, block.Addr(size))
	flag := interrupt.New()
	cfg := defaultCfg()
	b := New(mb, src, dst, dom, cfg, nil, c, flag)

	// Pre-mark half the range finished, simulating a prior interrupted run
	// whose mapfile was already saved.
	mb.ChangeChunkStatus(block.Block{Pos: 0, Size: block.Addr(size) / 2}, block.Finished)
	require.NoError(t, mb.ForceSave())

	require.NoError(t, b.Run())

	list := mb.List()
	for _, sb := range list {
		assert.Equal(t, block.Finished, sb.Status)
	}
	assert.Equal(t, data[size/2:], dst.data[size/2:size])
}
