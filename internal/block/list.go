package block

import "fmt"

// Sblock is a Block tagged with a rescue Status.
type Sblock struct {
	Block
	Status Status
}

func (s Sblock) String() string {
	return fmt.Sprintf("%s%s", s.Block, s.Status)
}

// List is a non-empty, ordered, contiguous sequence of Sblocks covering a
// single half-open range. It is the in-memory form of C2 "status extent
// list" and backs both the Mapbook (C5) and the lower-level list
// primitives the rescue/fill/generate drivers call directly.
//
// Invariants (enforced by every mutator in this file):
//   - Contiguity: list[i].End() == list[i+1].Pos
//   - Coverage: list[0].Pos and list[len-1].End() are the declared range
//   - Positive size: every list[i].Size > 0
//
// Compactness (no two adjacent same-status Sblocks) only holds right after
// Compact(); ordinary mutation is allowed to leave runs of same-status
// Sblocks, matching the teacher's own lazy-compaction style.
type List []Sblock

// NewList builds a single-Sblock list covering [pos, pos+size) with the
// given initial status. size must be > 0.
func NewList(pos, size Addr, status Status) List {
	if size == 0 {
		panic("block: NewList called with zero size")
	}
	return List{{Block: Block{Pos: pos, Size: size}, Status: status}}
}

// Range returns the Block covered by the whole list.
func (l List) Range() Block {
	return Block{Pos: l[0].Pos, Size: l[len(l)-1].End() - l[0].Pos}
}

// checkInvariants panics (internal-invariant violation, never a user error)
// if l is not contiguous or contains a non-positive-size Sblock. Used by
// tests and defensively after bulk mutation.
func (l List) checkInvariants() {
	for i, sb := range l {
		if sb.Size == 0 {
			panic(fmt.Sprintf("block: Sblock %d has zero size", i))
		}
		if i+1 < len(l) && sb.End() != l[i+1].Pos {
			panic(fmt.Sprintf("block: Sblock %d end %#x != Sblock %d pos %#x", i, sb.End(), i+1, l[i+1].Pos))
		}
	}
}

// FindIndex returns the index of the Sblock containing pos via binary
// search. pos must lie within l.Range(); if pos == l.Range().End() the
// last index is returned (convenient for "end of range" callers).
func (l List) FindIndex(pos Addr) int {
	lo, hi := 0, len(l)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l[mid].Pos <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Split replaces list[i] with two Sblocks of the same status, dividing at
// at, which must lie strictly inside list[i]'s range. Returns the mutated
// list; l itself is not modified in place (callers reassign).
func (l List) Split(i int, at Addr) List {
	sb := l[i]
	if at <= sb.Pos || at >= sb.End() {
		panic(fmt.Sprintf("block: Split at %#x outside interior of %s", at, sb.Block))
	}
	left := Sblock{Block: Block{Pos: sb.Pos, Size: at - sb.Pos}, Status: sb.Status}
	right := Sblock{Block: Block{Pos: at, Size: sb.End() - at}, Status: sb.Status}
	out := make(List, 0, len(l)+1)
	out = append(out, l[:i]...)
	out = append(out, left, right)
	out = append(out, l[i+1:]...)
	return out
}

// ChangeStatus sets list[i]'s status in place.
func (l List) ChangeStatus(i int, st Status) {
	l[i].Status = st
}

// ChangeChunkStatus retypes the chunk b, which must be contained in the
// union of the list's range, splitting Sblocks at b's boundaries as
// needed, and returns the mutated list plus the index of the (first,
// lowest) changed Sblock. b may span several existing Sblocks.
func (l List) ChangeChunkStatus(b Block, st Status) (List, int) {
	if b.Empty() {
		return l, -1
	}
	if !l.Range().Includes(b) {
		panic(fmt.Sprintf("block: ChangeChunkStatus chunk %s not contained in range %s", b, l.Range()))
	}
	if b.Pos > l[0].Pos {
		i := l.FindIndex(b.Pos)
		if l[i].Pos != b.Pos {
			l = l.Split(i, b.Pos)
		}
	}
	i := l.FindIndex(b.Pos)
	first := i
	for l[i].End() < b.End() {
		l[i].Status = st
		i++
	}
	if l[i].End() != b.End() {
		l = l.Split(i, b.End())
	}
	l[i].Status = st
	return l, first
}

// FindChunk narrows b to the first contained sub-range with status st,
// scanning forward. Returns the empty Block if no such sub-range exists
// within b.
func (l List) FindChunk(b Block, st Status) Block {
	if b.Empty() {
		return Block{}
	}
	i := l.FindIndex(b.Pos)
	for i < len(l) && l[i].Pos < b.End() {
		if l[i].Status == st {
			start := max64(l[i].Pos, b.Pos)
			end := start
			for i < len(l) && l[i].Status == st && l[i].Pos < b.End() {
				end = min64(l[i].End(), b.End())
				i++
			}
			return Block{Pos: start, Size: end - start}
		}
		i++
	}
	return Block{}
}

// RfindChunk is FindChunk searching from the high end of b.
func (l List) RfindChunk(b Block, st Status) Block {
	if b.Empty() {
		return Block{}
	}
	i := l.FindIndex(b.End() - 1)
	for i >= 0 && l[i].End() > b.Pos {
		if l[i].Status == st {
			end := min64(l[i].End(), b.End())
			start := end
			for i >= 0 && l[i].Status == st && l[i].End() > b.Pos {
				start = max64(l[i].Pos, b.Pos)
				i--
			}
			return Block{Pos: start, Size: end - start}
		}
		i--
	}
	return Block{}
}

// Compact merges adjacent Sblocks sharing the same status. Idempotent:
// Compact of a compacted list returns an equal list (spec I5).
func (l List) Compact() List {
	if len(l) == 0 {
		return l
	}
	out := make(List, 0, len(l))
	out = append(out, l[0])
	for _, sb := range l[1:] {
		last := &out[len(out)-1]
		if last.Status == sb.Status && last.End() == sb.Pos {
			last.Size += sb.Size
			continue
		}
		out = append(out, sb)
	}
	return out
}

// TruncateVector drops or clips Sblocks past end. If pad is true and end is
// past the current range, the list is extended with a trailing non-tried
// Sblock up to end instead of being clipped.
func (l List) TruncateVector(end Addr, pad bool) List {
	cur := l.Range().End()
	if end >= cur {
		if pad && end > cur {
			return append(l, Sblock{Block: Block{Pos: cur, Size: end - cur}, Status: NonTried})
		}
		return l
	}
	if end <= l[0].Pos {
		panic("block: TruncateVector end before start of range")
	}
	i := l.FindIndex(end)
	if l[i].Pos == end {
		return l[:i]
	}
	out := make(List, i+1)
	copy(out, l[:i+1])
	out[i].Size = end - out[i].Pos
	return out
}

// ExtendSblockVector appends a trailing non-tried Sblock so the list covers
// [l.Range().Pos, isize). A no-op if the list already reaches isize.
func (l List) ExtendSblockVector(isize Addr) List {
	return l.TruncateVector(isize, true)
}

// InsertSblock inserts sb at index i, which must align exactly with the
// current boundary at that position (used when building a list from
// scratch, e.g. during mapfile load).
func (l List) InsertSblock(i int, sb Sblock) List {
	out := make(List, 0, len(l)+1)
	out = append(out, l[:i]...)
	out = append(out, sb)
	out = append(out, l[i:]...)
	return out
}

// SplitSblockBy is an alias for Split kept for symmetry with the spec's
// operation names (split_sblock_by).
func (l List) SplitSblockBy(i int, at Addr) List { return l.Split(i, at) }
