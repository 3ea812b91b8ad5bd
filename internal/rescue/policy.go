package rescue

import (
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// attemptRead performs one read through the rate limiter, updates the
// byte/error samplers and preview ring, and writes a reads-log line, per
// the "Per-read policy (all phases)" rules of spec §4.3.
func (b *Book) attemptRead(buf []byte, pos int64) (n int, err error) {
	b.limiter.WaitN(len(buf))

	n, err = b.reader.ReadAt(buf, pos)
	b.byteSampler.Add(int64(n))

	if err != nil {
		b.errSampler.Add(1)
		b.totalErrors++
		b.newErrors++
		if b.cfg.ReopenOnError {
			b.reopen()
		}
	} else {
		b.lastSuccess = b.clk.Monotonic()
		if b.preview != nil {
			b.preview.Add(buf[:n])
		}
		if b.cfg.VerifyOnError && b.totalErrors > 0 {
			if verr := b.verifyLastGood(pos, n); verr != nil {
				err = verr
			}
		}
	}

	if b.logs != nil {
		status := byte('+')
		msg := ""
		if err != nil {
			status = '-'
			msg = err.Error()
		}
		b.logs.LogRead(uint64(pos), uint64(len(buf)), status, msg)
		b.logs.LogRateTick(uint64(pos), b.byteSampler.Rate(), b.byteSampler.Rate(), b.totalErrors)
	}
	return n, err
}

// reopen implements --reopen-on-error: close and reopen the input after
// every read error (spec §4.3). Only meaningful for reader types that
// support it; others silently no-op, matching the spec's framing of this
// as a best-effort device-level option, not a core-invariant requirement.
func (b *Book) reopen() {
	type reopener interface{ Reopen(write bool) error }
	if r, ok := b.reader.(reopener); ok {
		_ = r.Reopen(false)
	}
}

// verifyLastGood re-reads the sector just read after a prior failure was
// seen this run, per --verify-on-error: if it now fails too, the device is
// treated as having disappeared (an internal/device-level error, not a
// recorded bad sector).
func (b *Book) verifyLastGood(pos int64, n int) error {
	buf := make([]byte, n)
	if _, err := b.reader.ReadAt(buf, pos); err != nil {
		return rescueerr.NewDeviceError("verify", "", err)
	}
	return nil
}

// checkThresholds evaluates the cancellation thresholds of spec §4.3:
// exit_on_error, max_errors/new_errors_only, max_error_rate, min_read_rate,
// and timeout. Returns a ThresholdExceededError (graceful cancellation,
// exit 1) the first time any threshold is crossed.
func (b *Book) checkThresholds() error {
	if b.cfg.ExitOnError && b.totalErrors > 0 {
		return rescueerr.NewThresholdExceededError("exit-on-error")
	}
	if b.cfg.MaxErrors > 0 {
		count := b.totalErrors
		if b.cfg.NewErrorsOnly {
			count = b.newErrors
		}
		if count >= b.cfg.MaxErrors {
			return rescueerr.NewThresholdExceededError("max-errors")
		}
	}
	if b.cfg.MaxErrorRate > 0 && b.errSampler.Rate() > b.cfg.MaxErrorRate {
		return rescueerr.NewThresholdExceededError("max-error-rate")
	}
	if b.cfg.MinReadRate > 0 && b.byteSampler.Rate() < b.cfg.MinReadRate {
		return rescueerr.NewThresholdExceededError("min-read-rate")
	}
	if b.cfg.Timeout > 0 && b.clk.Monotonic()-b.lastSuccess > b.cfg.Timeout {
		return rescueerr.NewThresholdExceededError("timeout")
	}
	return nil
}
