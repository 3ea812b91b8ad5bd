// Package rescue implements the Rescuebook (spec §4.3, C6): the phased
// copy state machine (copying, trimming, scraping, retrying) with
// skip-on-error behavior, rate limits, error accounting, and
// interrupt-safe persistence.
package rescue

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
	"github.com/maghoff/ddrescue-dvdcss/internal/interrupt"
	"github.com/maghoff/ddrescue-dvdcss/internal/ioadapter"
	"github.com/maghoff/ddrescue-dvdcss/internal/logging"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapbook"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
	"github.com/maghoff/ddrescue-dvdcss/internal/ratelimit"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// ErrInterrupted is returned by Run when cancellation was requested via the
// interrupt.Flag. The caller is expected to re-raise the signal (spec §5,
// §6.4: exit status 128+signum) after Run returns this.
var ErrInterrupted = errors.New("rescue: interrupted")

// Book drives the copy state machine for one rescue run.
type Book struct {
	mb     *mapbook.Mapbook
	reader ioadapter.Reader
	writer ioadapter.Writer
	dom    domain.Domain
	cfg    Config
	logs   *logging.Loggers
	clk    clock.Clock
	flag   *interrupt.Flag

	limiter     *ratelimit.Limiter
	byteSampler *ratelimit.Sampler
	errSampler  *ratelimit.Sampler

	skip *skipper

	totalErrors int
	newErrors   int
	lastSuccess time.Duration
	preview     *previewRing
}

// New builds a Book ready to Run.
func New(mb *mapbook.Mapbook, reader ioadapter.Reader, writer ioadapter.Writer, dom domain.Domain, cfg Config, logs *logging.Loggers, clk clock.Clock, flag *interrupt.Flag) *Book {
	b := &Book{
		mb:     mb,
		reader: reader,
		writer: writer,
		dom:    dom,
		cfg:    cfg,
		logs:   logs,
		clk:    clk,
		flag:   flag,
		skip:   newSkipper(cfg),
	}
	b.limiter = ratelimit.NewLimiter(cfg.MaxReadRate, float64(cfg.Softbs())*4, clk)
	b.byteSampler = ratelimit.NewSampler(clk, 20*time.Second, 20)
	b.errSampler = ratelimit.NewSampler(clk, 10*time.Second, 10)
	if cfg.PreviewLines > 0 {
		n := cfg.PreviewLines
		if n > 32 {
			n = 32
		}
		b.preview = newPreviewRing(n, int(cfg.HardBS))
	}
	return b
}

// Run drives the phase state machine to completion (PhaseFinished), or
// until cancellation or a threshold is exceeded. Every phase transition is
// force-saved before the next phase begins. Progress inside a phase,
// read-error boundary changes included, is saved only through the
// Mapbook's SaveThrottle, so up to that interval of such changes can be
// missing from the mapfile after a crash.
func (b *Book) Run() error {
	b.applyRetryFlags()
	b.lastSuccess = b.clk.Monotonic()
	for {
		if b.checkInterrupt() {
			_ = b.mb.ForceSave()
			return ErrInterrupted
		}
		switch b.mb.CurrentStatus() {
		case mapfile.PhaseCopying:
			done, err := b.runCopyingPhase()
			if err != nil {
				return b.finish(err)
			}
			if done {
				b.transitionTo(mapfile.PhaseTrimming)
			}
		case mapfile.PhaseTrimming:
			if b.cfg.NoTrim {
				b.transitionTo(mapfile.PhaseScraping)
				continue
			}
			if err := b.runTrimmingPhase(); err != nil {
				return b.finish(err)
			}
			b.transitionTo(mapfile.PhaseScraping)
		case mapfile.PhaseScraping:
			if b.cfg.NoScrape {
				b.transitionTo(mapfile.PhaseRetrying)
				continue
			}
			if err := b.runScrapingPhase(); err != nil {
				return b.finish(err)
			}
			b.transitionTo(mapfile.PhaseRetrying)
		case mapfile.PhaseRetrying:
			if err := b.runRetryingPhase(); err != nil {
				return b.finish(err)
			}
			b.transitionTo(mapfile.PhaseFinished)
		case mapfile.PhaseFinished:
			return b.finish(nil)
		default:
			return rescueerr.NewInternalError("rescue: unknown phase %q", b.mb.CurrentStatus())
		}
	}
}

// phaseOrder ranks the phases Book.Run cycles through; mapfile.Phase's rune
// values don't sort in this order, so applyRetryFlags needs its own table to
// decide whether a rewind is actually backward.
var phaseOrder = map[mapfile.Phase]int{
	mapfile.PhaseCopying:  0,
	mapfile.PhaseTrimming: 1,
	mapfile.PhaseScraping: 2,
	mapfile.PhaseRetrying: 3,
	mapfile.PhaseFinished: 4,
}

// applyRetryFlags implements --retrim and --try-again (spec §6.2, §8): both
// move Sblock status backward against the usual rescue-monotonicity
// direction, as an explicit, user-requested reset before the phase machine
// runs. Each also rewinds current_status if the saved phase had already
// moved past the point where the reset Sblocks are picked up again, e.g. a
// mapfile left at finished after a prior run. --retrim runs first so a
// combination of both flags resolves to try-again's wider reset.
func (b *Book) applyRetryFlags() {
	if b.cfg.Retrim {
		b.mb.RemapStatus(block.BadSector, block.NonTrimmed)
		b.rewindPhaseTo(mapfile.PhaseTrimming)
	}
	if b.cfg.TryAgain {
		b.mb.RemapStatus(block.NonTrimmed, block.NonTried)
		b.mb.RemapStatus(block.NonScraped, block.NonTried)
		b.rewindPhaseTo(mapfile.PhaseCopying)
	}
}

func (b *Book) rewindPhaseTo(p mapfile.Phase) {
	if phaseOrder[p] < phaseOrder[b.mb.CurrentStatus()] {
		b.mb.SetPhase(p)
	}
}

func (b *Book) finish(err error) error {
	b.mb.CompactSblockVector()
	if serr := b.mb.ForceSave(); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (b *Book) transitionTo(p mapfile.Phase) {
	b.mb.SetPhase(p)
	_ = b.mb.ForceSave()
	if b.logs != nil {
		b.logs.Diag.Info("phase transition", zap.String("phase", p.String()))
	}
}

// checkInterrupt polls the cancellation flag, per spec §5's "re-checked at
// every loop head and after each I/O call".
func (b *Book) checkInterrupt() bool {
	_, ok := b.flag.Raised()
	return ok
}

// domainBlocks returns the domain's disjoint blocks in scan order for the
// given direction. Per spec §3.4 a restricted domain (-m/--domain-mapfile)
// may be disjoint; phase loops walk these blocks rather than collapsing to
// the domain's bounding Span, so gaps carved out by the restriction are
// skipped entirely instead of being revisited.
func (b *Book) domainBlocks(reverse bool) []block.Block {
	blocks := b.dom.Blocks()
	if !reverse {
		return blocks
	}
	out := make([]block.Block, len(blocks))
	for i, db := range blocks {
		out[len(blocks)-1-i] = db
	}
	return out
}
