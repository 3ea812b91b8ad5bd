package mapfile

import "github.com/maghoff/ddrescue-dvdcss/internal/rescueerr"

// Phase is the Mapbook's current_status (spec §3.5, §6.1). It reuses all
// five Sblock status characters, one for each of the four rescue phases and
// one for finished, plus two dedicated characters for the fill and generate modes, resolving
// spec §9 Open Question 3 (fill's "done" marker is handled separately, in
// package fill; Phase itself only needs to say "a fill/generate is
// in-progress").
type Phase rune

const (
	PhaseCopying    Phase = '?'
	PhaseTrimming   Phase = '*'
	PhaseScraping   Phase = '/'
	PhaseRetrying   Phase = '-'
	PhaseFinished   Phase = '+'
	PhaseFilling    Phase = 'F'
	PhaseGenerating Phase = 'G'
)

var validPhases = map[Phase]bool{
	PhaseCopying: true, PhaseTrimming: true, PhaseScraping: true,
	PhaseRetrying: true, PhaseFinished: true, PhaseFilling: true, PhaseGenerating: true,
}

func (p Phase) Valid() bool { return validPhases[p] }

func (p Phase) String() string { return string(rune(p)) }

// ParsePhase validates a phase character read from a mapfile header line.
func ParsePhase(r rune) (Phase, error) {
	p := Phase(r)
	if !p.Valid() {
		return 0, rescueerr.NewCorruptMapfileError("", "unknown current_status character")
	}
	return p, nil
}
