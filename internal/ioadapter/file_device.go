package ioadapter

import (
	"os"

	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// FileDevice wraps an *os.File as a Reader/Writer, for plain files and
// block special files alike (the OS treats both uniformly through
// ReadAt/WriteAt on Unix). Grounded on the teacher's device.DMGDevice
// (internal/device/dmg.go): open, stat, and report size up front.
type FileDevice struct {
	file *os.File
	path string
	size int64
}

// OpenFileDevice opens path for reading, and for writing too if write is
// true. direct/sync flags are handled by the CLI layer (out of core scope
// per spec §1) by passing an *os.File already opened with the right flags
// via WrapFile.
func OpenFileDevice(path string, write bool) (*FileDevice, error) {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, rescueerr.NewDeviceError("open", path, err)
	}
	return WrapFile(f, path)
}

// WrapFile adapts an already-opened *os.File (e.g. opened with O_DIRECT or
// O_SYNC by the CLI layer) into a FileDevice.
func WrapFile(f *os.File, path string) (*FileDevice, error) {
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, rescueerr.NewDeviceError("stat", path, err)
	}
	return &FileDevice{file: f, path: path, size: st.Size()}, nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	n, err := d.file.ReadAt(p, off)
	if err != nil {
		return n, rescueerr.NewDeviceError("read", d.path, err)
	}
	return n, nil
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.file.WriteAt(p, off)
	if err != nil {
		return n, rescueerr.NewDeviceError("write", d.path, err)
	}
	return n, nil
}

func (d *FileDevice) Sync() error {
	if err := d.file.Sync(); err != nil {
		return rescueerr.NewDeviceError("sync", d.path, err)
	}
	return nil
}

func (d *FileDevice) Size() (int64, error) { return d.size, nil }

func (d *FileDevice) Close() error { return d.file.Close() }

// Reopen closes and reopens the underlying file, for --reopen-on-error
// (spec §4.3). On failure the original descriptor remains unusable and the
// caller must treat the device as gone.
func (d *FileDevice) Reopen(write bool) error {
	_ = d.file.Close()
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(d.path, flag, 0o644)
	if err != nil {
		return rescueerr.NewDeviceError("reopen", d.path, err)
	}
	d.file = f
	return nil
}
