// Package domain implements the Domain collaborator (spec §3.4): a
// possibly-restricted subrange of the input's address space that rescue,
// fill, and generate operations iterate over.
package domain

import (
	"sort"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
)

// Domain is an ordered, disjoint set of Blocks restricting which part of
// the address space an operation considers.
type Domain struct {
	blocks []block.Block
}

// New builds a Domain covering [ipos, ipos+maxSize). maxSize == 0 means
// "unbounded" and is resolved against an input size by Bound.
func New(ipos, maxSize block.Addr) Domain {
	if maxSize == 0 {
		return Domain{blocks: []block.Block{{Pos: ipos, Size: ^block.Addr(0) - ipos}}}
	}
	return Domain{blocks: []block.Block{{Pos: ipos, Size: maxSize}}}
}

// Bound clips the domain to end, used once the real input size is known.
func (d Domain) Bound(end block.Addr) Domain {
	out := make([]block.Block, 0, len(d.blocks))
	for _, b := range d.blocks {
		if b.Pos >= end {
			continue
		}
		if b.End() > end {
			b.Size = end - b.Pos
		}
		out = append(out, b)
	}
	return Domain{blocks: out}
}

// RestrictToFinished intersects d with the finished extents of another
// Sblock list (the "domain mapfile" of spec §3.4).
func RestrictToFinished(d Domain, finished block.List) Domain {
	var out []block.Block
	for _, sb := range finished {
		if sb.Status != block.Finished {
			continue
		}
		for _, db := range d.blocks {
			if ix := db.Intersect(sb.Block); !ix.Empty() {
				out = append(out, ix)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return Domain{blocks: out}
}

// Empty reports whether the domain contains no bytes.
func (d Domain) Empty() bool { return len(d.blocks) == 0 }

// Blocks returns the ordered, disjoint blocks making up the domain.
func (d Domain) Blocks() []block.Block { return d.blocks }

// Span returns the smallest Block covering every block in the domain, or
// the empty Block if the domain is empty.
func (d Domain) Span() block.Block {
	if d.Empty() {
		return block.Block{}
	}
	first, last := d.blocks[0], d.blocks[len(d.blocks)-1]
	return block.Block{Pos: first.Pos, Size: last.End() - first.Pos}
}

// Includes reports whether sb lies entirely within the domain.
func (d Domain) Includes(sb block.Block) bool {
	for _, b := range d.blocks {
		if b.Includes(sb) {
			return true
		}
	}
	return false
}

// Before reports whether the whole domain lies strictly before sb (d < sb).
func (d Domain) Before(sb block.Block) bool {
	if d.Empty() {
		return true
	}
	return d.blocks[len(d.blocks)-1].End() <= sb.Pos
}

// Intersect narrows b to the portion that lies within the domain, returning
// the empty Block if none does. When the domain has several disjoint
// blocks, the first intersecting region (in address order) is returned.
func (d Domain) Intersect(b block.Block) block.Block {
	for _, db := range d.blocks {
		if ix := db.Intersect(b); !ix.Empty() {
			return ix
		}
	}
	return block.Block{}
}
