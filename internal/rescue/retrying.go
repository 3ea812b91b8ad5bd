package rescue

import "github.com/maghoff/ddrescue-dvdcss/internal/block"

// runRetryingPhase re-attempts every bad-sector Sblock at sector
// granularity for up to MaxRetries additional passes (-1 = infinite),
// alternating direction between passes unless Unidirectional, per spec
// §4.3 "Retrying phase".
func (b *Book) runRetryingPhase() error {
	hardbs := block.Addr(b.cfg.HardBS)

	for attempt := 0; b.cfg.MaxRetries < 0 || attempt < b.cfg.MaxRetries; attempt++ {
		if b.checkInterrupt() {
			return nil
		}
		reverse := !b.cfg.Unidirectional && attempt%2 == 1
		if b.cfg.Reverse {
			reverse = !reverse
		}

		buf := make([]byte, hardbs)
		anyBad := false
		anyRecovered := false
		for _, dom := range b.domainBlocks(reverse) {
			pos := dom.Pos
			if reverse {
				pos = dom.End()
			}
			for {
				if b.checkInterrupt() {
					return nil
				}
				var chunk block.Block
				if reverse {
					chunk = b.mb.RfindChunk(block.Block{Pos: dom.Pos, Size: pos - dom.Pos}, block.BadSector)
				} else {
					chunk = b.mb.FindChunk(block.Block{Pos: pos, Size: dom.End() - pos}, block.BadSector)
				}
				if chunk.Empty() {
					break
				}
				anyBad = true

				for pos := chunk.Pos; pos < chunk.End(); pos += hardbs {
					size := hardbs
					if pos+size > chunk.End() {
						size = chunk.End() - pos
					}
					n, err := b.attemptRead(buf[:size], int64(pos))
					sb := block.Block{Pos: pos, Size: size}
					if err == nil && block.Addr(n) == size {
						if werr := b.writeAt(buf[:n], pos); werr != nil {
							return werr
						}
						b.mb.ChangeChunkStatus(sb, block.Finished)
						anyRecovered = true
					}
					if err := b.mb.Save(false); err != nil {
						return err
					}
					if terr := b.checkThresholds(); terr != nil {
						return terr
					}
				}
				pos = advancePast(chunk, reverse)
			}
		}
		if !anyBad || !anyRecovered {
			break
		}
	}
	return nil
}
