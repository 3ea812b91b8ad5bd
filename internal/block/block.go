// Package block implements the half-open byte-interval algebra the rest of
// the rescue engine is built on: addresses, blocks, and ordered, tagged
// partitions of an address range (Sblocks).
package block

import "fmt"

// Addr is a byte offset into the address space under rescue. The address
// space is modeled as 64-bit unsigned, matching the on-disk mapfile format
// (hex, unsigned).
type Addr = uint64

// Block is the half-open interval [Pos, Pos+Size). A Block with Size == 0 is
// only ever used as a transient "empty" sentinel returned by narrowing
// operations; it is never stored in an Sblock list.
type Block struct {
	Pos  Addr
	Size Addr
}

// End returns Pos+Size.
func (b Block) End() Addr { return b.Pos + b.Size }

// Empty reports whether the block carries no bytes.
func (b Block) Empty() bool { return b.Size == 0 }

// Overlaps reports whether a and b share any address.
func (a Block) Overlaps(b Block) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Pos < b.End() && b.Pos < a.End()
}

// Includes reports whether a fully contains b.
func (a Block) Includes(b Block) bool {
	if b.Empty() {
		return a.Pos <= b.Pos && b.Pos <= a.End()
	}
	return a.Pos <= b.Pos && b.End() <= a.End()
}

// IncludesAddr reports whether pos falls inside a.
func (a Block) IncludesAddr(pos Addr) bool {
	return a.Pos <= pos && pos < a.End()
}

// Joinable reports whether a and b are adjacent (a.End()==b.Pos or
// b.End()==a.Pos) and can be merged by Join.
func (a Block) Joinable(b Block) bool {
	return a.End() == b.Pos || b.End() == a.Pos
}

// Join merges two adjacent blocks. It panics if the blocks are not
// adjacent; callers must check Joinable first. Joinable and non-adjacent
// blocks is an internal-invariant violation, never a user-facing error.
func (a Block) Join(b Block) Block {
	switch {
	case a.End() == b.Pos:
		return Block{Pos: a.Pos, Size: a.Size + b.Size}
	case b.End() == a.Pos:
		return Block{Pos: b.Pos, Size: b.Size + a.Size}
	default:
		panic(fmt.Sprintf("block: Join called on non-adjacent blocks %+v, %+v", a, b))
	}
}

// Intersect returns the overlapping region of a and b, or the empty Block if
// they do not overlap.
func (a Block) Intersect(b Block) Block {
	if !a.Overlaps(b) {
		return Block{}
	}
	pos := max64(a.Pos, b.Pos)
	end := min64(a.End(), b.End())
	return Block{Pos: pos, Size: end - pos}
}

func max64(a, b Addr) Addr {
	if a > b {
		return a
	}
	return b
}

func min64(a, b Addr) Addr {
	if a < b {
		return a
	}
	return b
}

func (b Block) String() string {
	return fmt.Sprintf("[%#x,%#x)", b.Pos, b.End())
}
