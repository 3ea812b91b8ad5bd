package ioadapter

import (
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// SectorSize is the fixed optical-disc sector size spec §9 "Design Notes"
// requires: positions and sizes accessed through a DVDCSSDevice must be
// multiples of this value.
const SectorSize = 2048

// CSSDescrambler decrypts a single CSS-scrambled sector in place. The real
// implementation (outside core scope per spec §1) talks to libdvdcss or an
// equivalent key-exchange layer; the core only needs this narrow interface.
type CSSDescrambler interface {
	DescrambleSector(sector []byte) error
}

// DVDCSSDevice is the optional optical-disc back-end from spec §9: an
// alternative Reader implementing the same positioned-read contract as
// FileDevice/ImageDevice, with the additional constraint that every read
// is sector-aligned, descrambling each sector it reads. It is read-only:
// discs are never written to, so DVDCSSDevice does not implement Writer.
type DVDCSSDevice struct {
	raw         Reader
	descrambler CSSDescrambler
}

// NewDVDCSSDevice wraps raw (typically a FileDevice over a raw /dev/sr0 or
// similar) with a CSS descrambler.
func NewDVDCSSDevice(raw Reader, descrambler CSSDescrambler) *DVDCSSDevice {
	return &DVDCSSDevice{raw: raw, descrambler: descrambler}
}

func (d *DVDCSSDevice) Size() (int64, error) { return d.raw.Size() }

// ReadAt requires off and len(p) to both be multiples of SectorSize; any
// other request is an argument error, not a device error, since it
// reflects a caller bug rather than media damage.
func (d *DVDCSSDevice) ReadAt(p []byte, off int64) (int, error) {
	if off%SectorSize != 0 || len(p)%SectorSize != 0 {
		return 0, rescueerr.NewArgumentError("dvdcss: read at %#x len %d not sector-aligned", off, len(p))
	}
	n, err := d.raw.ReadAt(p, off)
	full := (n / SectorSize) * SectorSize
	for s := 0; s < full; s += SectorSize {
		if derr := d.descrambler.DescrambleSector(p[s : s+SectorSize]); derr != nil {
			return s, rescueerr.NewDeviceError("descramble", "", derr)
		}
	}
	return n, err
}
