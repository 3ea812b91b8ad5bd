// Package ratelimit implements the rescue engine's rate controls (spec
// §4.3 "Per-read policy"): max_read_rate throttling via a token bucket, and
// min_read_rate / max_error_rate measurement via a rolling window.
//
// The throttle is grounded on cockroachdb-pebble's internal/rate.Limiter,
// rewritten against the real standalone github.com/cockroachdb/tokenbucket
// module (the same one pebble's package wraps) instead of copying pebble's
// internal package, and against this module's own clock.Clock instead of
// time.Now/time.Sleep so it can be driven by a fake clock in tests.
package ratelimit

import (
	"time"

	"github.com/cockroachdb/tokenbucket"

	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
)

// Limiter throttles byte throughput to at most rate bytes/second, with
// burst headroom of burst bytes. A zero-rate Limiter never blocks.
type Limiter struct {
	tb      tokenbucket.TokenBucket
	rate    float64
	clock   clock.Clock
	sleepFn func(time.Duration)
}

// NewLimiter returns a Limiter allowing rate bytes/second with bursts up to
// burst bytes. rate <= 0 disables throttling.
func NewLimiter(rate, burst float64, c clock.Clock) *Limiter {
	l := &Limiter{rate: rate, clock: c}
	if rate <= 0 {
		return l
	}
	l.tb.InitWithNowFn(tokenbucket.TokensPerSecond(rate), tokenbucket.Tokens(burst), c.Now)
	return l
}

// WaitN blocks (sleeping according to the Limiter's clock) until n bytes'
// worth of tokens are available, then consumes them.
func (l *Limiter) WaitN(n int) {
	if l.rate <= 0 {
		return
	}
	for {
		ok, d := l.tb.TryToFulfill(tokenbucket.Tokens(n))
		if ok {
			return
		}
		l.sleep(d)
	}
}

func (l *Limiter) sleep(d time.Duration) {
	if l.sleepFn != nil {
		l.sleepFn(d)
		return
	}
	time.Sleep(d)
}

// SetSleepFunc overrides the sleep implementation, for deterministic tests.
func (l *Limiter) SetSleepFunc(f func(time.Duration)) { l.sleepFn = f }

// Sampler is a rolling-window byte-rate counter used to evaluate
// min_read_rate (cancel if the rolling average falls below a floor) and
// max_error_rate (cancel if errors/second exceeds a ceiling). Adapted from
// pebble's internal/rate.rateCounter, generalized to count either bytes or
// error events and driven by clock.Clock rather than time.Now.
type Sampler struct {
	clock       clock.Clock
	window      time.Duration
	buckets     []int64
	bucketWidth time.Duration
	head        int
	lastTick    time.Duration
	total       int64
	started     bool
}

// NewSampler returns a Sampler averaging over window, divided into
// resolution buckets.
func NewSampler(c clock.Clock, window time.Duration, resolution int) *Sampler {
	if resolution < 1 {
		resolution = 1
	}
	return &Sampler{
		clock:       c,
		window:      window,
		buckets:     make([]int64, resolution),
		bucketWidth: window / time.Duration(resolution),
	}
}

// Add records n units (bytes or errors) at the current time.
func (s *Sampler) Add(n int64) {
	s.tick()
	s.buckets[s.head] += n
	s.total += n
}

// Rate returns the current average rate in units/second over the window.
func (s *Sampler) Rate() float64 {
	s.tick()
	secs := s.window.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.total) / secs
}

func (s *Sampler) tick() {
	now := s.clock.Monotonic()
	if !s.started {
		s.started = true
		s.lastTick = now
		return
	}
	elapsed := now - s.lastTick
	if elapsed < s.bucketWidth {
		return
	}
	nBuckets := int(elapsed / s.bucketWidth)
	if nBuckets > len(s.buckets) {
		nBuckets = len(s.buckets)
		s.total = 0
		for i := range s.buckets {
			s.buckets[i] = 0
		}
	}
	for i := 0; i < nBuckets; i++ {
		s.head = (s.head + 1) % len(s.buckets)
		s.total -= s.buckets[s.head]
		s.buckets[s.head] = 0
	}
	s.lastTick = now
}
