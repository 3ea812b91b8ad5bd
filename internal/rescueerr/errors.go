// Package rescueerr defines the typed error kinds spec §7 distinguishes,
// and the exit-status mapping spec §6.4 requires. Errors are built on
// github.com/cockroachdb/errors so that wrapping, stack capture, and
// errors.As all compose the same way they do throughout cockroachdb-pebble.
package rescueerr

import (
	"github.com/cockroachdb/errors"
)

// ExitStatus is one of the four process exit codes spec §6.4 defines.
type ExitStatus int

const (
	ExitOK          ExitStatus = 0
	ExitEnvironment ExitStatus = 1
	ExitCorruptMap  ExitStatus = 2
	ExitInternal    ExitStatus = 3
)

// ArgumentError reports a bad CLI argument or flag combination.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return e.Msg }

func NewArgumentError(format string, args ...interface{}) error {
	return errors.WithStack(&ArgumentError{Msg: errors.Newf(format, args...).Error()})
}

// DeviceError wraps an OS-level open/seek/read/write failure on a device.
type DeviceError struct {
	Op   string
	Path string
	Err  error
}

func (e *DeviceError) Error() string {
	return errors.Newf("%s %s: %v", e.Op, e.Path, e.Err).Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }

func NewDeviceError(op, path string, err error) error {
	return errors.WithStack(&DeviceError{Op: op, Path: path, Err: err})
}

// CorruptMapfileError reports a structurally invalid mapfile (spec §4.1).
type CorruptMapfileError struct {
	Path   string
	Reason string
}

func (e *CorruptMapfileError) Error() string {
	return errors.Newf("corrupt mapfile %s: %s", e.Path, e.Reason).Error()
}

func NewCorruptMapfileError(path, reason string) error {
	return errors.WithStack(&CorruptMapfileError{Path: path, Reason: reason})
}

// ThresholdExceededError reports a graceful-cancellation threshold (rate,
// error count, timeout, exit-on-error) having been crossed.
type ThresholdExceededError struct {
	Threshold string
}

func (e *ThresholdExceededError) Error() string {
	return errors.Newf("threshold exceeded: %s", e.Threshold).Error()
}

func NewThresholdExceededError(threshold string) error {
	return errors.WithStack(&ThresholdExceededError{Threshold: threshold})
}

// InternalError reports a never-recoverable invariant violation.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

func NewInternalError(format string, args ...interface{}) error {
	return errors.WithStack(&InternalError{Msg: errors.Newf(format, args...).Error()})
}

// StatusFor maps err to the process exit status spec §6.4 prescribes. A nil
// err maps to ExitOK. Unrecognized errors map to ExitEnvironment, matching
// spec §7's default "reported with the underlying OS code, exit 1".
func StatusFor(err error) ExitStatus {
	if err == nil {
		return ExitOK
	}
	var argErr *ArgumentError
	var devErr *DeviceError
	var corruptErr *CorruptMapfileError
	var thresholdErr *ThresholdExceededError
	var internalErr *InternalError
	switch {
	case errors.As(err, &argErr), errors.As(err, &devErr), errors.As(err, &thresholdErr):
		return ExitEnvironment
	case errors.As(err, &corruptErr):
		return ExitCorruptMap
	case errors.As(err, &internalErr):
		return ExitInternal
	}
	return ExitEnvironment
}
