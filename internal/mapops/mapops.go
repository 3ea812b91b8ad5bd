// Package mapops implements the map-operations tool (spec §4.6, C9): a
// set of pure mapfile-to-mapfile transforms and queries that never touch
// device I/O, used by ddrescuelog.
package mapops

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/maghoff/ddrescue-dvdcss/internal/block"
	"github.com/maghoff/ddrescue-dvdcss/internal/domain"
	"github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"
)

// statusAt returns the status of l at pos, assuming pos lies within
// l.Range(); callers are expected to have already clipped to the domain.
func statusAt(l block.List, pos block.Addr) block.Status {
	return l[l.FindIndex(pos)].Status
}

// walk calls f once per minimal aligned step across dom, where a "step"
// is the smallest span over which both lists hold a constant status; used
// by AND/OR/XOR so boundaries from either input are respected.
func walk(dom domain.Domain, a, b block.List, f func(step block.Block, sa, sb block.Status)) {
	for _, db := range dom.Blocks() {
		pos := db.Pos
		for pos < db.End() {
			sa := statusAt(a, pos)
			sb := statusAt(b, pos)
			aEnd := a[a.FindIndex(pos)].End()
			bEnd := b[b.FindIndex(pos)].End()
			end := min(aEnd, bEnd, db.End())
			f(block.Block{Pos: pos, Size: end - pos}, sa, sb)
			pos = end
		}
	}
}

func min(vs ...block.Addr) block.Addr {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// buildList renders a flat slice of (Block, Status) steps, covering the
// domain's span, into a new block.List, filling any gaps the domain left
// uncovered with NonTried.
func buildList(span block.Block, steps []block.Sblock) block.List {
	sort.Slice(steps, func(i, j int) bool { return steps[i].Pos < steps[j].Pos })
	out := make(block.List, 0, len(steps)+2)
	pos := span.Pos
	for _, sb := range steps {
		if sb.Pos > pos {
			out = append(out, block.Sblock{Block: block.Block{Pos: pos, Size: sb.Pos - pos}, Status: block.NonTried})
		}
		out = append(out, sb)
		pos = sb.End()
	}
	if pos < span.End() {
		out = append(out, block.Sblock{Block: block.Block{Pos: pos, Size: span.End() - pos}, Status: block.NonTried})
	}
	if len(out) == 0 {
		out = block.List{{Block: span, Status: block.NonTried}}
	}
	return out.Compact()
}

// And implements spec §4.6's AND: finished iff finished in both inputs,
// else bad-sector.
func And(dom domain.Domain, a, b block.List) block.List {
	var steps []block.Sblock
	walk(dom, a, b, func(step block.Block, sa, sb block.Status) {
		st := block.BadSector
		if sa == block.Finished && sb == block.Finished {
			st = block.Finished
		}
		steps = append(steps, block.Sblock{Block: step, Status: st})
	})
	return buildList(dom.Span(), steps)
}

// Or implements spec §4.6's OR: finished iff finished in either input,
// otherwise unchanged from the first input.
func Or(dom domain.Domain, a, b block.List) block.List {
	var steps []block.Sblock
	walk(dom, a, b, func(step block.Block, sa, sb block.Status) {
		st := sa
		if sa == block.Finished || sb == block.Finished {
			st = block.Finished
		}
		steps = append(steps, block.Sblock{Block: step, Status: st})
	})
	return buildList(dom.Span(), steps)
}

// Xor implements spec §4.6's XOR: finished iff finished in exactly one
// input, else bad-sector. The two mapfiles' domains must match in extent.
func Xor(dom domain.Domain, a, b block.List) (block.List, error) {
	if a.Range() != b.Range() {
		return nil, rescueerr.NewArgumentError("xor: domains must match in extent")
	}
	var steps []block.Sblock
	walk(dom, a, b, func(step block.Block, sa, sb block.Status) {
		af := sa == block.Finished
		bf := sb == block.Finished
		st := block.BadSector
		if af != bf {
			st = block.Finished
		}
		steps = append(steps, block.Sblock{Block: step, Status: st})
	})
	return buildList(dom.Span(), steps), nil
}

// ChangeTypes implements spec §4.6's change-types: parallel-character
// substitution. If to is shorter than from, its last character is
// replicated to cover the remainder of from.
func ChangeTypes(l block.List, from, to string) (block.List, error) {
	if from == "" {
		return nil, rescueerr.NewArgumentError("change-types: empty from set")
	}
	if to == "" {
		return nil, rescueerr.NewArgumentError("change-types: empty to set")
	}
	mapping := make(map[block.Status]block.Status, len(from))
	toRunes := []rune(to)
	for i, r := range []rune(from) {
		fs, ok := block.ParseStatus(r)
		if !ok {
			return nil, rescueerr.NewArgumentError("change-types: unknown status %q", r)
		}
		var tr rune
		if i < len(toRunes) {
			tr = toRunes[i]
		} else {
			tr = toRunes[len(toRunes)-1]
		}
		ts, ok := block.ParseStatus(tr)
		if !ok {
			return nil, rescueerr.NewArgumentError("change-types: unknown status %q", tr)
		}
		mapping[fs] = ts
	}

	out := make(block.List, len(l))
	for i, sb := range l {
		if ts, ok := mapping[sb.Status]; ok {
			sb.Status = ts
		}
		out[i] = sb
	}
	return out.Compact(), nil
}

// Invert implements spec §4.6's invert: shorthand for change-types
// "?*/-+" -> "++++-".
func Invert(l block.List) (block.List, error) {
	return ChangeTypes(l, "?*/-+", "++++-")
}

// Compare implements spec §4.6's compare: true iff a and b have identical
// domains and identical Sblock sequences within dom.
func Compare(dom domain.Domain, a, b block.List) bool {
	if a.Range() != b.Range() {
		return false
	}
	equal := true
	walk(dom, a, b, func(step block.Block, sa, sb block.Status) {
		if sa != sb {
			equal = false
		}
	})
	return equal
}

// CreateFromBadBlocks implements spec §4.6's create: given a sorted or
// unsorted stream of decimal block numbers (hardbs granularity) and the
// span they apply to, produce a mapfile where listed blocks carry
// badStatus and everything else carries goodStatus.
func CreateFromBadBlocks(r io.Reader, span block.Block, hardbs block.Addr, badStatus, goodStatus block.Status) (block.List, error) {
	bad := make(map[block.Addr]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var n uint64
		if _, err := fmt.Sscanf(line, "%d", &n); err != nil {
			return nil, rescueerr.NewArgumentError("create: invalid block number %q", line)
		}
		bad[block.Addr(n)*hardbs] = true
	}
	if err := sc.Err(); err != nil {
		return nil, rescueerr.NewDeviceError("read bad-block list", "", err)
	}

	var steps []block.Sblock
	for pos := span.Pos; pos < span.End(); pos += hardbs {
		end := pos + hardbs
		if end > span.End() {
			end = span.End()
		}
		st := goodStatus
		if bad[pos] {
			st = badStatus
		}
		steps = append(steps, block.Sblock{Block: block.Block{Pos: pos, Size: end - pos}, Status: st})
	}
	return buildList(span, steps), nil
}

// ListBlocks implements spec §4.6's list-blocks: decimal block numbers at
// hardbs granularity, unique and monotonic, of every Sblock in dom whose
// status is in selector. offset shifts positions before dividing by hardbs,
// matching the output-relative numbering ddrescuelog produces when an
// output-position different from the input-position is in effect.
func ListBlocks(dom domain.Domain, l block.List, hardbs block.Addr, selector string, offset block.Addr) ([]uint64, error) {
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64]bool)
	var out []uint64
	for _, db := range dom.Blocks() {
		for pos := db.Pos; pos < db.End(); pos += hardbs {
			st := statusAt(l, pos)
			if !sel[st] {
				continue
			}
			n := uint64((pos + offset) / hardbs)
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func parseSelector(s string) (map[block.Status]bool, error) {
	sel := make(map[block.Status]bool, len(s))
	for _, r := range s {
		st, ok := block.ParseStatus(r)
		if !ok {
			return nil, rescueerr.NewArgumentError("unknown status character %q", r)
		}
		sel[st] = true
	}
	return sel, nil
}

// StatusSummary is one line of spec §4.6's show-status output.
type StatusSummary struct {
	Status  block.Status
	Size    block.Addr
	Areas   int
	Percent float64
}

// ShowStatus implements spec §4.6's show-status: one summary line per
// status observed in dom (size, number of areas, percentage of the
// domain), plus errsize (non-trimmed + non-scraped + bad-sector).
func ShowStatus(dom domain.Domain, l block.List) (summaries []StatusSummary, errsize block.Addr) {
	totals := make(map[block.Status]block.Addr)
	areas := make(map[block.Status]int)
	var domainSize block.Addr

	for _, db := range dom.Blocks() {
		domainSize += db.Size
		pos := db.Pos
		for pos < db.End() {
			idx := l.FindIndex(pos)
			sb := l[idx]
			end := min(sb.End(), db.End())
			totals[sb.Status] += end - pos
			areas[sb.Status]++
			pos = end
		}
	}

	var statuses []block.Status
	for st := range totals {
		statuses = append(statuses, st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	for _, st := range statuses {
		pct := 0.0
		if domainSize > 0 {
			pct = 100 * float64(totals[st]) / float64(domainSize)
		}
		summaries = append(summaries, StatusSummary{Status: st, Size: totals[st], Areas: areas[st], Percent: pct})
		if st == block.NonTrimmed || st == block.NonScraped || st == block.BadSector {
			errsize += totals[st]
		}
	}
	return summaries, errsize
}

// DoneStatus implements spec §4.6's done-status: true iff every Sblock in
// dom is finished.
func DoneStatus(dom domain.Domain, l block.List) bool {
	for _, db := range dom.Blocks() {
		pos := db.Pos
		for pos < db.End() {
			idx := l.FindIndex(pos)
			sb := l[idx]
			if sb.Status != block.Finished {
				return false
			}
			pos = min(sb.End(), db.End())
		}
	}
	return true
}
