package ioadapter

import (
	"os"

	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// ImageDevice is a file containing a payload at a fixed byte offset (an
// optical-disc image with a leading descriptor block, say). Adapted from
// the teacher's DMGDevice (internal/device/dmg.go), which carries the same
// file+size+offset triple for locating an APFS container inside a .dmg.
type ImageDevice struct {
	file   *os.File
	path   string
	size   int64 // payload size, excluding offset
	offset int64 // byte offset of payload within the file
}

// OpenImageDevice opens path and exposes the region starting at offset as
// the addressable payload.
func OpenImageDevice(path string, offset int64) (*ImageDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rescueerr.NewDeviceError("open", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, rescueerr.NewDeviceError("stat", path, err)
	}
	if offset > st.Size() {
		f.Close()
		return nil, rescueerr.NewDeviceError("open", path, os.ErrInvalid)
	}
	return &ImageDevice{file: f, path: path, size: st.Size() - offset, offset: offset}, nil
}

func (d *ImageDevice) ReadAt(p []byte, off int64) (int, error) {
	n, err := d.file.ReadAt(p, d.offset+off)
	if err != nil {
		return n, rescueerr.NewDeviceError("read", d.path, err)
	}
	return n, nil
}

func (d *ImageDevice) Size() (int64, error) { return d.size, nil }

func (d *ImageDevice) Close() error { return d.file.Close() }
