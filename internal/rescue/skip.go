package rescue

// skipper implements the skip-on-error heuristic (spec §4.3): after a read
// error, skip forward by the current skip size, doubling it up to
// MaxSkipBS; after a success, halve it back down toward SkipBS. Disabled
// entirely when SkipBS == 0.
//
// Invariant I8 (spec §8): after any successful read, the next skip size is
// <= max(SkipBS, previous/2); after any failed read with skipping enabled,
// the next skip size is <= min(MaxSkipBS, 2*previous), starting at SkipBS.
type skipper struct {
	skipbs    int64
	maxSkipBS int64
	cur       int64
}

func newSkipper(cfg Config) *skipper {
	return &skipper{skipbs: cfg.SkipBS, maxSkipBS: cfg.MaxSkipBS, cur: cfg.SkipBS}
}

func (s *skipper) enabled() bool { return s.skipbs > 0 }

// onError returns the skip distance to apply now, then grows cur for next
// time.
func (s *skipper) onError() int64 {
	applied := s.cur
	if applied <= 0 {
		applied = s.skipbs
	}
	next := applied * 2
	if s.maxSkipBS > 0 && next > s.maxSkipBS {
		next = s.maxSkipBS
	}
	s.cur = next
	return applied
}

// onSuccess halves cur back toward skipbs.
func (s *skipper) onSuccess() {
	half := s.cur / 2
	if half < s.skipbs {
		half = s.skipbs
	}
	s.cur = half
}
