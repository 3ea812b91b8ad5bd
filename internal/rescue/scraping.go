package rescue

import "github.com/maghoff/ddrescue-dvdcss/internal/block"

// runScrapingPhase reads every non-scraped Sblock one sector at a time,
// per spec §4.3 "Scraping phase": each sector becomes finished on success
// or bad-sector on failure.
func (b *Book) runScrapingPhase() error {
	hardbs := block.Addr(b.cfg.HardBS)
	buf := make([]byte, hardbs)

	for _, dom := range b.domainBlocks(false) {
		for {
			if b.checkInterrupt() {
				return nil
			}
			chunk := b.mb.FindChunk(dom, block.NonScraped)
			if chunk.Empty() {
				break
			}

			for pos := chunk.Pos; pos < chunk.End(); pos += hardbs {
				if b.checkInterrupt() {
					return nil
				}
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
				} else {
					b.mb.ChangeChunkStatus(sb, block.BadSector)
				}
				if err := b.mb.Save(false); err != nil {
					return err
				}
				if terr := b.checkThresholds(); terr != nil {
					return terr
				}
			}
		}
	}
	return nil
}
