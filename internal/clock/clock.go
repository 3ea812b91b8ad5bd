// Package clock abstracts time so the rescue engine's rate measurement,
// timeouts, and save-throttle logic (spec §4.1, §4.3, §5) can be driven by
// a fake clock in tests instead of wall time.
package clock

import "time"

// Clock is the seekable-clock collaborator spec §1 calls out as an external
// interface the core requires.
type Clock interface {
	// Now returns the current wall-clock time, used only for display and
	// for file timestamps; never for interval math.
	Now() time.Time
	// Monotonic returns a monotonically increasing duration since some
	// unspecified epoch fixed at Clock construction. All rate, timeout,
	// and save-throttle arithmetic in the engine uses this, never Now.
	Monotonic() time.Duration
}

// System is a Clock backed by the real wall clock and monotonic timer.
type System struct {
	start time.Time
}

// NewSystem returns a System clock whose monotonic epoch is "now".
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Now() time.Time { return time.Now() }

func (s *System) Monotonic() time.Duration { return time.Since(s.start) }

// Fake is a Clock that only advances when told to, for deterministic tests
// of rate limiting, timeouts, and save throttling.
type Fake struct {
	now  time.Time
	mono time.Duration
}

// NewFake returns a Fake clock starting at the given wall time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time { return f.now }

func (f *Fake) Monotonic() time.Duration { return f.mono }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.now = f.now.Add(d)
	f.mono += d
}
