// Package generate implements the Genbook (spec §4.5, C8): reconstructing
// an approximate mapfile from an input file and an already-partial output,
// for the case where the mapfile from the original rescue was lost.
package generate

import (
	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
	"github.com/maghoff/ddrescue-dvdcss/internal/interrupt"
	"github.com/maghoff/ddrescue-dvdcss/internal/ioadapter"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapbook"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// Config holds the Genbook's tunables, spec §4.5's cluster/hardbs window.
type Config struct {
	Cluster int64
	HardBS  int64
}

func (c Config) windowBytes() int64 { return c.Cluster * c.HardBS }

// Book drives the generate state machine.
type Book struct {
	mb     *mapbook.Mapbook
	input  ioadapter.Reader
	output ioadapter.Reader
	dom    domain.Domain
	cfg    Config
	flag   *interrupt.Flag
}

// New builds a Book ready to run. It returns an ArgumentError if mb's
// underlying mapfile is non-empty and not already mid-generation, per spec
// §4.5 "refuses to run on a non-empty mapfile unless its status is already
// generating".
func New(mb *mapbook.Mapbook, input, output ioadapter.Reader, dom domain.Domain, cfg Config, flag *interrupt.Flag) (*Book, error) {
	if !isBlank(mb.List()) && mb.CurrentStatus() != mapfile.PhaseGenerating {
		return nil, rescueerr.NewArgumentError("generate: mapfile already exists and is not mid-generation")
	}
	return &Book{mb: mb, input: input, output: output, dom: dom, cfg: cfg, flag: flag}, nil
}

// isBlank reports whether l is a single non-tried Sblock spanning its
// whole range, i.e. a freshly created Mapbook that has never been touched.
func isBlank(l block.List) bool {
	return len(l) == 1 && l[0].Status == block.NonTried
}

// Run scans every cluster-aligned window in the domain, classifying each
// as non-tried (output all-zero, input not) or finished (otherwise), per
// spec §4.5. On completion current_status becomes finished.
func (b *Book) Run() error {
	b.mb.SetPhase(mapfile.PhaseGenerating)
	if err := b.mb.ForceSave(); err != nil {
		return err
	}

	window := block.Addr(b.cfg.windowBytes())

	inBuf := make([]byte, window)
	outBuf := make([]byte, window)

	pos := b.mb.CurrentPos()
	for _, db := range b.dom.Blocks() {
		if pos < db.Pos {
			pos = db.Pos
		}
		for pos < db.End() {
			if b.checkInterrupt() {
				return b.mb.ForceSave()
			}

			end := pos + window
			if end > db.End() {
				end = db.End()
			}
			size := end - pos

			in := inBuf[:size]
			out := outBuf[:size]
			inN, inErr := b.input.ReadAt(in, int64(pos))
			outN, outErr := b.output.ReadAt(out, int64(pos))

			st := classify(in[:clamp(inN)], inErr, out[:clamp(outN)], outErr)
			b.mb.ChangeChunkStatus(block.Block{Pos: pos, Size: size}, st)

			pos = end
			b.mb.SetCurrentPos(pos)
			if err := b.mb.Save(false); err != nil {
				return b.finish(err)
			}
		}
	}
	return b.finish(nil)
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// classify implements spec §4.5's rule: non-tried when the output window
// is entirely zero and the input window is not; finished otherwise. A read
// error on the output is treated as "all zero" (nothing was ever written
// there); a read error on the input leaves the window finished, since
// there is nothing left to recover from input either way.
func classify(in []byte, inErr error, out []byte, outErr error) block.Status {
	outZero := outErr != nil || isAllZero(out)
	inZero := inErr != nil || isAllZero(in)
	if outZero && !inZero {
		return block.NonTried
	}
	return block.Finished
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
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
