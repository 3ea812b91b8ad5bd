// Package mapbook implements the Mapbook (spec §4.2, C5): the mutable
// state (Sblock list + current position + current phase) shared by the
// rescue, fill, and generate drivers, plus persistence with the save
// cadence spec §4.1 requires.
package mapbook

import (
	"time"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/clock"
	"github.com/maghoff/ddrescue-dvdcss/internal/mapfile"
)

// SaveThrottle is the minimum interval between mapfile saves during
// steady-state progress, per spec §4.1 "subject to a throttle of ≈30s".
const SaveThrottle = 30 * time.Second

// Mapbook owns the Sblock list and the Mapbook header fields (spec §3.5),
// and is shared by the rescue/fill/generate drivers via composition, not
// inheritance, per spec §9's design note.
type Mapbook struct {
	list          block.List
	currentPos    block.Addr
	currentStatus mapfile.Phase
	currentPass   int
	cPassBitset   uint8
	logfileIsize  block.Addr
	offset        int64

	path     string
	clock    clock.Clock
	lastSave time.Duration
	dirty    bool
}

// New builds a Mapbook covering [ipos, ipos+isize) with every Sblock
// non-tried, for a fresh rescue with no prior mapfile.
func New(path string, ipos, isize block.Addr, status mapfile.Phase, c clock.Clock) *Mapbook {
	return &Mapbook{
		list:          block.NewList(ipos, isize, block.NonTried),
		currentPos:    ipos,
		currentStatus: status,
		logfileIsize:  isize,
		path:          path,
		clock:         c,
	}
}

// FromState adopts an already-loaded mapfile.State (resume case).
func FromState(path string, st *mapfile.State, c clock.Clock) *Mapbook {
	return &Mapbook{
		list:          st.List,
		currentPos:    st.CurrentPos,
		currentStatus: st.CurrentStatus,
		currentPass:   st.CurrentPass,
		cPassBitset:   st.CPassBitset,
		logfileIsize:  st.InputSize(),
		path:          path,
		clock:         c,
	}
}

// Path returns the mapfile path this Mapbook saves to.
func (m *Mapbook) Path() string { return m.path }

// List returns the current Sblock list. Callers must not retain a mutable
// reference across a call that mutates the Mapbook.
func (m *Mapbook) List() block.List { return m.list }

func (m *Mapbook) CurrentPos() block.Addr         { return m.currentPos }
func (m *Mapbook) SetCurrentPos(pos block.Addr)    { m.currentPos = pos; m.dirty = true }
func (m *Mapbook) CurrentStatus() mapfile.Phase    { return m.currentStatus }
func (m *Mapbook) CurrentPass() int                { return m.currentPass }
func (m *Mapbook) CPassBitset() uint8              { return m.cPassBitset }
func (m *Mapbook) LogfileISize() block.Addr        { return m.logfileIsize }
func (m *Mapbook) Offset() int64                   { return m.offset }
func (m *Mapbook) SetOffset(off int64)             { m.offset = off }

// SetPhase transitions current_status and marks the Mapbook dirty. It does
// not save: an unforced Save after it is still subject to SaveThrottle, so
// the drivers call ForceSave after every phase transition.
func (m *Mapbook) SetPhase(p mapfile.Phase) {
	m.currentStatus = p
	m.dirty = true
}

// SetPass records the current copying pass (1..4) and its bitset.
func (m *Mapbook) SetPass(pass int, bitset uint8) {
	m.currentPass = pass
	m.cPassBitset = bitset
	m.dirty = true
}

// FindIndex returns the index of the Sblock containing pos.
func (m *Mapbook) FindIndex(pos block.Addr) int { return m.list.FindIndex(pos) }

// FindChunk narrows b to the first contained sub-range with status st.
func (m *Mapbook) FindChunk(b block.Block, st block.Status) block.Block {
	return m.list.FindChunk(b, st)
}

// RfindChunk is FindChunk searching from the high end.
func (m *Mapbook) RfindChunk(b block.Block, st block.Status) block.Block {
	return m.list.RfindChunk(b, st)
}

// ChangeChunkStatus retypes b and marks the Mapbook dirty.
func (m *Mapbook) ChangeChunkStatus(b block.Block, st block.Status) int {
	l, idx := m.list.ChangeChunkStatus(b, st)
	m.list = l
	m.dirty = true
	return idx
}

// RemapStatus retypes every Sblock currently at status from to status to,
// across the whole list, and marks the Mapbook dirty. Used by --retrim and
// --try-again, which move a status backward against the usual
// rescue-monotonicity direction as an explicit, user-requested operation.
func (m *Mapbook) RemapStatus(from, to block.Status) {
	out := make(block.List, len(m.list))
	for i, sb := range m.list {
		if sb.Status == from {
			sb.Status = to
		}
		out[i] = sb
	}
	m.list = out.Compact()
	m.dirty = true
}

// TruncateVector drops or pads the list to end.
func (m *Mapbook) TruncateVector(end block.Addr, pad bool) {
	m.list = m.list.TruncateVector(end, pad)
	m.dirty = true
}

// ExtendSblockVector appends a trailing non-tried Sblock up to isize.
func (m *Mapbook) ExtendSblockVector(isize block.Addr) {
	m.list = m.list.ExtendSblockVector(isize)
	m.logfileIsize = isize
	m.dirty = true
}

// InsertSblock inserts sb at index i.
func (m *Mapbook) InsertSblock(i int, sb block.Sblock) {
	m.list = m.list.InsertSblock(i, sb)
	m.dirty = true
}

// SplitSblockBy splits the Sblock at i at address at.
func (m *Mapbook) SplitSblockBy(i int, at block.Addr) {
	m.list = m.list.Split(i, at)
	m.dirty = true
}

// CompactSblockVector merges adjacent same-status Sblocks.
func (m *Mapbook) CompactSblockVector() {
	m.list = m.list.Compact()
	m.dirty = true
}

// Snapshot renders the current in-memory state into a mapfile.State value
// suitable for mapfile.Save.
func (m *Mapbook) Snapshot() *mapfile.State {
	return &mapfile.State{
		List:          m.list,
		CurrentPos:    m.currentPos,
		CurrentStatus: m.currentStatus,
		CurrentPass:   m.currentPass,
		CPassBitset:   m.cPassBitset,
	}
}

// Save writes the Mapbook to its mapfile path. If force is false, the save
// is skipped when nothing has changed since the last save, and also when
// less than SaveThrottle has passed since the last save, whatever kind of
// change is pending. force=true always writes.
func (m *Mapbook) Save(force bool) error {
	if !force && !m.dirty {
		return nil
	}
	if !force && m.clock != nil {
		if m.clock.Monotonic()-m.lastSave < SaveThrottle {
			return nil
		}
	}
	if err := mapfile.Save(m.path, m.Snapshot()); err != nil {
		return err
	}
	m.dirty = false
	if m.clock != nil {
		m.lastSave = m.clock.Monotonic()
	}
	return nil
}

// ForceSave always writes, regardless of throttle or dirty state — used on
// phase transitions, cancellation, and normal exit (spec §4.1).
func (m *Mapbook) ForceSave() error { return m.Save(true) }
