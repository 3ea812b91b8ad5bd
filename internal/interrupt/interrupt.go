// Package interrupt implements the single cancellation flag spec §5
// describes: a lock-free integer storing the received signal number,
// written only by a dedicated watcher goroutine and polled at every
// rescue-loop head.
//
// Go's runtime does not expose a true async-signal-handler context to user
// code (no allocation-free, signal-safe callback). Spec §9 "Design Notes"
// explicitly allows the substitution used here: a cancellation token set by
// a dedicated watcher fed from signal.Notify.
package interrupt

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Flag is a lock-free cancellation flag. The zero value reports "not
// raised".
type Flag struct {
	signum atomic.Int32
}

// New returns a Flag not yet watching anything.
func New() *Flag {
	return &Flag{}
}

// Watch starts a goroutine that stores the first received signal's number
// into the flag and stops watching (matching the handler's "store if zero"
// rule from spec §5 — only the first signal is recorded; subsequent ones
// are left for the Go runtime's default disposition). Watch returns a
// stop function that must be called to release the signal.Notify channel.
func (f *Flag) Watch(signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			f.signum.CompareAndSwap(0, int32(signalNumber(sig)))
			signal.Stop(ch)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// Raised reports whether a signal has been recorded, and which one.
func (f *Flag) Raised() (signum int, ok bool) {
	v := f.signum.Load()
	return int(v), v != 0
}

// Reraise re-sends the recorded signal to the current process so the
// process's own exit status reflects it (128 + signum), per spec §6.4 and
// §5's cancellation semantics. A no-op if no signal was recorded.
func (f *Flag) Reraise() {
	signum, ok := f.Raised()
	if !ok {
		return
	}
	signal.Reset(syscall.Signal(signum))
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	_ = p.Signal(syscall.Signal(signum))
}

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return int(syscall.SIGTERM)
}
