package transcript

import "sort"

// Segment is one timed span of transcribed text. Times are seconds from the
// start of the recording.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeakerTurn is one diarization window: the span during which a single
// speaker was talking. Turns for the same speaker never overlap.
type SpeakerTurn struct {
	Speaker int     `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Utterance is one speaker-tagged block of text derived by fusing a speaker
// turn with the transcript segments that fall inside its window. Ordering
// follows the turn it was derived from; no timestamps are retained.
type Utterance struct {
	Speaker int    `json:"speaker"`
	Text    string `json:"text"`
}

// Result is the output of a transcription provider. Exactly one of Text
// (line-oriented transcript grammar) or Segments (timed spans) is populated,
// depending on the provider.
type Result struct {
	Text     string
	Segments []Segment
}

// SortSegments orders segments by start time, preserving the original order
// of equal starts.
func SortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
}

// SortTurns orders speaker turns by start time, preserving the original order
// of equal starts.
func SortTurns(turns []SpeakerTurn) {
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].Start < turns[j].Start
	})
}
