package rescue

import (
	"go.uber.org/zap"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// runCopyingPhase performs one directional scan of the domain at softbs
// granularity, copying non-tried regions and applying the skip-on-error
// heuristic (spec §4.3 "Copying phase"). Returns done=true once no
// non-tried region remains in the domain, signalling the phase machine to
// advance to trimming.
//
// Passes 2-4 of spec §4.3 exist in the source to revisit regions a
// direction/skip-size change might expose; under this implementation's
// skip model every skipped byte is immediately reclassified non-trimmed,
// so a second full scan for non-tried never finds new work. CPassBitset
// and CurrentPass are still tracked and persisted (so a resumed run picks
// up the same enabled pass spec §9 Open Question 1 asks for), but the scan
// itself only needs to run once per direction.
func (b *Book) runCopyingPhase() (done bool, err error) {
	pass := b.cfg.NextEnabledPass(b.mb.CurrentPass())
	if pass == 0 {
		return true, nil
	}
	if b.mb.CurrentPass() != pass {
		b.mb.SetPass(pass, b.cfg.CPassBitset)
	}

	reverse := b.effectiveDirection(pass)
	softbs := b.cfg.Softbs()
	buf := make([]byte, softbs)
	pos := b.mb.CurrentPos()

	for _, dom := range b.domainBlocks(reverse) {
		if pos < dom.Pos || pos > dom.End() {
			pos = dom.Pos
			if reverse {
				pos = dom.End()
			}
		}

		for {
			if b.checkInterrupt() {
				return false, nil
			}

			var chunk block.Block
			if reverse {
				chunk = b.mb.RfindChunk(block.Block{Pos: dom.Pos, Size: pos - dom.Pos}, block.NonTried)
			} else {
				chunk = b.mb.FindChunk(block.Block{Pos: pos, Size: dom.End() - pos}, block.NonTried)
			}
			if chunk.Empty() {
				break
			}

			chunk = clipToSoftbs(chunk, softbs, reverse)

			n, rerr := b.attemptRead(buf[:chunk.Size], int64(chunk.Pos))
			if rerr == nil && int64(n) == int64(chunk.Size) {
				if werr := b.writeAt(buf[:n], chunk.Pos); werr != nil {
					return false, werr
				}
				b.mb.ChangeChunkStatus(chunk, block.Finished)
				b.skip.onSuccess()
				pos = advancePast(chunk, reverse)
			} else {
				goodSize := int64(n)
				if goodSize > 0 {
					good := block.Block{Pos: chunk.Pos, Size: block.Addr(goodSize)}
					if !reverse {
						if werr := b.writeAt(buf[:goodSize], good.Pos); werr != nil {
							return false, werr
						}
						b.mb.ChangeChunkStatus(good, block.Finished)
					}
				}
				bad := chunk
				if goodSize > 0 && !reverse {
					bad = block.Block{Pos: chunk.Pos + block.Addr(goodSize), Size: chunk.Size - block.Addr(goodSize)}
				}
				b.mb.ChangeChunkStatus(bad, block.NonTrimmed)

				if b.skip.enabled() {
					skipDist := block.Addr(b.skip.onError())
					var skipRegion block.Block
					if reverse {
						skipStart := block.Addr(0)
						if bad.Pos > dom.Pos+skipDist {
							skipStart = bad.Pos - skipDist
						} else {
							skipStart = dom.Pos
						}
						skipRegion = block.Block{Pos: skipStart, Size: bad.Pos - skipStart}
					} else {
						end := bad.End() + skipDist
						if end > dom.End() {
							end = dom.End()
						}
						skipRegion = block.Block{Pos: bad.End(), Size: end - bad.End()}
					}
					skipRegion = b.dom.Intersect(skipRegion)
					if !skipRegion.Empty() {
						b.mb.ChangeChunkStatus(skipRegion, block.NonTrimmed)
					}
					if reverse {
						pos = skipRegion.Pos
						if skipRegion.Empty() {
							pos = bad.Pos
						}
					} else {
						pos = skipRegion.End()
						if skipRegion.Empty() {
							pos = bad.End()
						}
					}
				} else {
					pos = advancePast(bad, reverse)
				}
			}

			b.mb.SetCurrentPos(pos)
			if err := b.mb.Save(false); err != nil {
				return false, err
			}
			if terr := b.checkThresholds(); terr != nil {
				return false, terr
			}
		}
	}

	if b.logs != nil {
		b.logs.Diag.Info("copying pass complete", zap.Int("pass", pass))
	}
	done = true
	for _, dom := range b.dom.Blocks() {
		if !b.mb.FindChunk(dom, block.NonTried).Empty() {
			done = false
			break
		}
	}
	return done, nil
}

// effectiveDirection resolves whether this pass reads in reverse, applying
// spec §4.3's "direction is toggled unless unidirectional or reverse".
func (b *Book) effectiveDirection(pass int) bool {
	if b.cfg.Unidirectional || b.cfg.Reverse {
		return b.cfg.Reverse
	}
	toggled := (pass % 2) == 0
	return b.cfg.Reverse != toggled
}

func clipToSoftbs(chunk block.Block, softbs int64, reverse bool) block.Block {
	if block.Addr(softbs) >= chunk.Size {
		return chunk
	}
	if reverse {
		return block.Block{Pos: chunk.End() - block.Addr(softbs), Size: block.Addr(softbs)}
	}
	return block.Block{Pos: chunk.Pos, Size: block.Addr(softbs)}
}

func advancePast(b block.Block, reverse bool) block.Addr {
	if reverse {
		return b.Pos
	}
	return b.End()
}

func (b *Book) writeAt(p []byte, pos block.Addr) error {
	if _, err := b.writer.WriteAt(p, int64(pos)+b.mb.Offset()); err != nil {
		return rescueerr.NewDeviceError("write", "", err)
	}
	return nil
}
