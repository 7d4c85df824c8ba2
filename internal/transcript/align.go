package transcript

import "strings"

// Align fuses speaker turns with transcript segments into ordered utterances.
//
// A segment T belongs to a turn D when T.Start lies in [D.Start, D.End) or
// T.End lies in (D.Start, D.End]. A segment straddling two turns is attached
// to both; the duplication is deliberate and must survive. Turns with no
// matching segment produce no utterance. Matched texts are joined with a
// single space in segment order.
func Align(turns []SpeakerTurn, segments []Segment) []Utterance {
	utterances, _ := AlignWindows(turns, segments)
	return utterances
}

// AlignWindows is Align but also returns the owning turn for each utterance,
// index-aligned with the utterance slice, for callers that need the window's
// real time boundaries.
//
// Both inputs are sorted by start time before the sweep, so the merge runs in
// O(D+T) plus the size of the matches.
func AlignWindows(turns []SpeakerTurn, segments []Segment) ([]Utterance, []SpeakerTurn) {
	if len(turns) == 0 || len(segments) == 0 {
		return nil, nil
	}

	sortedTurns := make([]SpeakerTurn, len(turns))
	copy(sortedTurns, turns)
	SortTurns(sortedTurns)

	sortedSegments := make([]Segment, len(segments))
	copy(sortedSegments, segments)
	SortSegments(sortedSegments)

	// Built lazily so a run with no matches returns nil, the same shape the
	// empty-input case produces.
	var utterances []Utterance
	var windows []SpeakerTurn
	lo := 0
	for _, turn := range sortedTurns {
		// Segments ending before this turn starts can never match this or
		// any later turn.
		for lo < len(sortedSegments) && sortedSegments[lo].End < turn.Start {
			lo++
		}

		var texts []string
		for i := lo; i < len(sortedSegments) && sortedSegments[i].Start <= turn.End; i++ {
			if overlaps(turn, sortedSegments[i]) {
				texts = append(texts, sortedSegments[i].Text)
			}
		}
		if len(texts) == 0 {
			continue
		}
		utterances = append(utterances, Utterance{
			Speaker: turn.Speaker,
			Text:    strings.Join(texts, " "),
		})
		windows = append(windows, turn)
	}
	return utterances, windows
}

// overlaps reports whether segment belongs to the turn's window: start in
// [turn.Start, turn.End) or end in (turn.Start, turn.End].
func overlaps(turn SpeakerTurn, segment Segment) bool {
	if segment.Start >= turn.Start && segment.Start < turn.End {
		return true
	}
	return segment.End > turn.Start && segment.End <= turn.End
}
