// Package fill implements the Fillbook (spec §4.4, C7): overwriting the
// Sblocks whose status matches a selector with a repeating pattern, so a
// rescued image can be inspected for where garbage data lives before it is
// burned or mounted.
package fill

import (
	"fmt"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
	"github.com/maghoff/ddrescue-dvdcss/internal/interrupt"
	"github.com/maghoff/ddrescue-dvdcss/internal/ioadapter"
	"github.com/maghoff/ddrescue-dvdcss/internal/logging"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapbook"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// Config holds the Fillbook's tunables, spec §4.4 and §6.2's fill-mode flag
// group.
type Config struct {
	// Selector is the set of status characters to overwrite, e.g. "?-*".
	Selector string
	// Cluster and HardBS together size the pattern buffer and each write
	// chunk: cluster * hardbs bytes.
	Cluster int64
	HardBS  int64
	// Marker replaces the first bytes of every write chunk with the
	// decimal output offset, for post-fill inspection.
	Marker bool
	// IgnoreWriteErrors keeps filling past a failed WriteAt instead of
	// aborting.
	IgnoreWriteErrors bool
	// Synchronous calls Sync after every write chunk.
	Synchronous bool
}

func (c Config) clusterBytes() int64 { return c.Cluster * c.HardBS }

// parseSelector turns cfg.Selector into a lookup set of block.Status.
func parseSelector(s string) (map[block.Status]bool, error) {
	set := make(map[block.Status]bool, len(s))
	for _, r := range s {
		st, ok := block.ParseStatus(r)
		if !ok {
			return nil, rescueerr.NewArgumentError("fill-mode: unknown status character %q", r)
		}
		set[st] = true
	}
	if len(set) == 0 {
		return nil, rescueerr.NewArgumentError("fill-mode: empty selector")
	}
	return set, nil
}

// Book drives the fill state machine. It does not re-read the mapfile as a
// stream (spec §4.4): progress is tracked with the Mapbook's existing
// CurrentPos field, advanced strictly forward, so a resumed fill never
// re-fills an already-filled Sblock (see SPEC_FULL.md §9, Open Question 3).
type Book struct {
	mb     *mapbook.Mapbook
	output ioadapter.Writer
	dom    domain.Domain
	cfg    Config
	selSet map[block.Status]bool
	logs   *logging.Loggers
	clk    clock.Clock
	flag   *interrupt.Flag

	pattern []byte
}

// New builds a Book; the fill pattern is supplied afterwards, read once by
// ReadPattern, before Run. output is the destination the Sblocks matching
// the selector are overwritten in.
func New(mb *mapbook.Mapbook, output ioadapter.Writer, dom domain.Domain, cfg Config, logs *logging.Loggers, clk clock.Clock, flag *interrupt.Flag) (*Book, error) {
	selSet, err := parseSelector(cfg.Selector)
	if err != nil {
		return nil, err
	}
	return &Book{
		mb:     mb,
		output: output,
		dom:    dom,
		cfg:    cfg,
		selSet: selSet,
		logs:   logs,
		clk:    clk,
		flag:   flag,
	}, nil
}

// ReadPattern fills the Book's pattern buffer from input, tiling the
// buffer if the input is shorter than cluster*hardbs bytes, per spec §4.4
// "read once into a buffer ... repeated as needed".
func (b *Book) ReadPattern(input ioadapter.Reader) error {
	size := b.cfg.clusterBytes()
	if size <= 0 {
		return rescueerr.NewArgumentError("fill-mode: cluster*hardbs must be positive")
	}
	buf := make([]byte, size)
	n, err := input.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return rescueerr.NewDeviceError("read fill pattern", "", err)
	}
	if n < len(buf) {
		tileFrom(buf, n)
	}
	b.pattern = buf
	return nil
}

// tileFrom repeats buf[:n] across the rest of buf.
func tileFrom(buf []byte, n int) {
	if n == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return
	}
	for i := n; i < len(buf); i += n {
		end := i + n
		if end > len(buf) {
			end = len(buf)
		}
		copy(buf[i:end], buf[:end-i])
	}
}

// Run overwrites every domain Sblock matching the selector, starting from
// mb.CurrentPos, advancing strictly forward one cluster chunk at a time.
func (b *Book) Run() error {
	if b.pattern == nil {
		return rescueerr.NewInternalError("fill.Book.Run called before ReadPattern")
	}
	b.mb.SetPhase(mapfile.PhaseFilling)
	if err := b.mb.ForceSave(); err != nil {
		return err
	}

	clusterSize := block.Addr(b.cfg.clusterBytes())
	pos := b.mb.CurrentPos()

	for _, db := range b.dom.Blocks() {
		if pos < db.Pos {
			pos = db.Pos
		}
		for pos < db.End() {
			if b.checkInterrupt() {
				return b.finish(nil)
			}

			chunkEnd := pos + clusterSize
			if chunkEnd > db.End() {
				chunkEnd = db.End()
			}
			chunk := block.Block{Pos: pos, Size: chunkEnd - pos}

			if b.shouldFill(chunk) {
				if err := b.fillChunk(chunk); err != nil {
					return b.finish(err)
				}
			}

			pos = chunkEnd
			b.mb.SetCurrentPos(pos)
			if err := b.mb.Save(false); err != nil {
				return b.finish(err)
			}
		}
	}
	return b.finish(nil)
}

// shouldFill reports whether any byte of chunk currently has a selected
// status. Fillbook overwrites whole cluster windows, matching spec §4.4's
// "writes proceed in cluster-sized chunks".
func (b *Book) shouldFill(chunk block.Block) bool {
	list := b.mb.List()
	for i := list.FindIndex(chunk.Pos); i < len(list) && list[i].Pos < chunk.End(); i++ {
		if b.selSet[list[i].Status] {
			return true
		}
	}
	return false
}

func (b *Book) fillChunk(chunk block.Block) error {
	buf := make([]byte, chunk.Size)
	copy(buf, b.pattern[:chunk.Size])
	if b.cfg.Marker {
		writeMarker(buf, int64(chunk.Pos))
	}

	n, err := b.output.WriteAt(buf, int64(chunk.Pos))
	if err != nil || block.Addr(n) != chunk.Size {
		if b.logs != nil {
			b.logs.LogRead(uint64(chunk.Pos), uint64(chunk.Size), byte('w'), errString(err))
		}
		if !b.cfg.IgnoreWriteErrors {
			return rescueerr.NewDeviceError("write fill pattern", "", err)
		}
		return nil
	}
	if b.cfg.Synchronous {
		if err := b.output.Sync(); err != nil {
			return rescueerr.NewDeviceError("sync fill pattern", "", err)
		}
	}
	return nil
}

// writeMarker overwrites the leading bytes of buf with the decimal text of
// off, spec §4.4's "location marker", leaving the remainder untouched.
func writeMarker(buf []byte, off int64) {
	text := []byte(fmt.Sprintf("%d", off))
	n := copy(buf, text)
	if n < len(buf) {
		buf[n] = ' '
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (b *Book) checkInterrupt() bool {
	_, ok := b.flag.Raised()
	return ok
}

func (b *Book) finish(err error) error {
	if serr := b.mb.ForceSave(); serr != nil && err == nil {
		err = serr
	}
	if err == nil {
		b.mb.SetPhase(mapfile.PhaseFinished)
		_ = b.mb.ForceSave()
	}
	return err
}
