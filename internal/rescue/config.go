package rescue

import "time"

// Config holds every rescue-tool tunable spec §4.3 and §6.2 describe.
type Config struct {
	HardBS  int64 // hardware sector size
	Cluster int64 // sectors per softbs chunk during copying

	SkipBS    int64 // initial skip distance after a read error; 0 disables skipping
	MaxSkipBS int64 // cap on skip growth

	Reverse        bool // start from the high end
	Unidirectional bool // never toggle direction pass-to-pass

	CPassBitset uint8 // bit i-1 gates copying pass i (1..4)
	NoTrim      bool
	NoScrape    bool
	MaxRetries  int // -1 = infinite

	// Retrim marks every bad-sector Sblock non-trimmed before Run begins,
	// forcing a fresh trimming pass over previously-failed areas.
	Retrim bool
	// TryAgain marks every non-trimmed and non-scraped Sblock non-tried
	// before Run begins. It is the sanctioned exception to the
	// rescue-monotonicity invariant (a status normally only advances).
	TryAgain bool

	MinReadRate  float64 // bytes/sec; 0 disables the check (no automatic floor is measured)
	MaxReadRate  float64 // bytes/sec; 0 = unlimited
	MaxErrorRate float64 // errors/sec; 0 = unlimited

	MaxErrors     int // 0 = unlimited
	NewErrorsOnly bool
	ExitOnError   bool

	Timeout time.Duration // 0 = unlimited

	VerifyOnError  bool
	ReopenOnError  bool
	PreviewLines   int // 0 disables the preview ring; clamped [1,32] when > 0

	IgnoreWriteErrors bool
	Synchronous       bool
}

// Softbs returns the copying-phase read granularity (cluster*hardbs).
func (c Config) Softbs() int64 { return c.Cluster * c.HardBS }

// PassEnabled reports whether copying pass (1..4) is selected by the
// bitset.
func (c Config) PassEnabled(pass int) bool {
	if pass < 1 || pass > 4 {
		return false
	}
	return c.CPassBitset&(1<<(pass-1)) != 0
}

// NextEnabledPass resolves spec §9 Open Question 1: when the mapfile's
// saved current_pass is no longer selected by CPassBitset (the user changed
// --cpass between runs), resume at the next enabled pass instead, wrapping
// from 4 back to 1. Returns 0 if no pass is enabled at all.
func (c Config) NextEnabledPass(from int) int {
	if from < 1 {
		from = 1
	}
	for i := 0; i < 4; i++ {
		pass := ((from - 1 + i) % 4) + 1
		if c.PassEnabled(pass) {
			return pass
		}
	}
	return 0
}
