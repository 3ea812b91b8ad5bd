package rescue

import (
	"github.com/maghoff/ddrescue-dvdcss/internal/block"
)

// runTrimmingPhase narrows every non-trimmed Sblock to its damaged
// interior, per spec §4.3 "Trimming phase": read sector-by-sector from
// both ends inward until the first error on each side; the edges become
// finished, the interior becomes non-scraped (or, if only one sector wide,
// bad-sector directly). Left-then-right resolves spec §9 Open Question 2.
func (b *Book) runTrimmingPhase() error {
	hardbs := block.Addr(b.cfg.HardBS)
	buf := make([]byte, hardbs)

	for _, dom := range b.domainBlocks(false) {
		for {
			if b.checkInterrupt() {
				return nil
			}
			chunk := b.mb.FindChunk(dom, block.NonTrimmed)
			if chunk.Empty() {
				break
			}

			leftGoodEnd := chunk.Pos
			for pos := chunk.Pos; pos < chunk.End(); pos += hardbs {
				n, err := b.attemptRead(buf, int64(pos))
				if err != nil || block.Addr(n) < hardbs {
					break
				}
				if werr := b.writeAt(buf, pos); werr != nil {
					return werr
				}
				leftGoodEnd = pos + hardbs
			}

			if leftGoodEnd >= chunk.End() {
				b.mb.ChangeChunkStatus(chunk, block.Finished)
			} else {
				rightGoodStart := chunk.End()
				for pos := chunk.End() - hardbs; pos >= leftGoodEnd; {
					n, err := b.attemptRead(buf, int64(pos))
					if err != nil || block.Addr(n) < hardbs {
						break
					}
					if werr := b.writeAt(buf, pos); werr != nil {
						return werr
					}
					rightGoodStart = pos
					if pos < leftGoodEnd+hardbs {
						break
					}
					pos -= hardbs
				}

				if leftGoodEnd > chunk.Pos {
					b.mb.ChangeChunkStatus(block.Block{Pos: chunk.Pos, Size: leftGoodEnd - chunk.Pos}, block.Finished)
				}
				if rightGoodStart < chunk.End() {
					b.mb.ChangeChunkStatus(block.Block{Pos: rightGoodStart, Size: chunk.End() - rightGoodStart}, block.Finished)
				}
				interior := block.Block{Pos: leftGoodEnd, Size: rightGoodStart - leftGoodEnd}
				if !interior.Empty() {
					if interior.Size == hardbs {
						b.mb.ChangeChunkStatus(interior, block.BadSector)
					} else {
						b.mb.ChangeChunkStatus(interior, block.NonScraped)
					}
				}
			}

			if err := b.mb.Save(false); err != nil {
				return err
			}
			if terr := b.checkThresholds(); terr != nil {
				return terr
			}
		}
	}
	return nil
}
