package rescue

import (
	"fmt"
)

// memDevice is a fake ioadapter.Reader/Writer over an in-memory byte slice,
// with configurable always-failing byte ranges, for exercising the phase
// state machine without real I/O.
type memDevice struct {
	data    []byte
	badFrom int64
	badTo   int64
}

func newMemDevice(data []byte) *memDevice { return &memDevice{data: data} }

func (d *memDevice) setBadRange(from, to int64) { d.badFrom, d.badTo = from, to }

func (d *memDevice) Size() (int64, error) { return int64(len(d.data)), nil }

func (d *memDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.badTo > d.badFrom && off < d.badTo && off+int64(len(p)) > d.badFrom {
		return 0, fmt.Errorf("simulated read error at %#x", off)
	}
	if off >= int64(len(d.data)) {
		return 0, fmt.Errorf("EOF at %#x", off)
	}
	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("short read at %#x", off)
	}
	return n, nil
}

func (d *memDevice) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(d.data)) {
		grown := make([]byte, end)
		copy(grown, d.data)
		d.data = grown
	}
	return copy(d.data[off:], p), nil
}

func (d *memDevice) Sync() error { return nil }
