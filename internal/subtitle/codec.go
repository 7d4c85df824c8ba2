package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"redub/internal/transcript"
)

// fieldDelimiter separates speaker, timestamp, and content in the provider's
// transcript line grammar.
const fieldDelimiter = "    "

// defaultCaptionSeconds pads a synthesized end time onto decoded captions.
// The line grammar carries no end timestamps, so decode fabricates
// start+5s; this is a known limitation of the format, kept as-is rather than
// guessed around.
const defaultCaptionSeconds = 5

// Caption is one indexed, timed, speaker-labeled entry. Times are seconds.
type Caption struct {
	Index   int
	Start   float64
	End     float64
	Speaker string
	Text    string
}

// Decode parses the four-space transcript grammar into captions. Lines that
// do not split into exactly speaker/timestamp/content, or whose timestamp is
// not HH:MM:SS, are skipped. Indices are assigned densely from 1.
func Decode(raw string) []Caption {
	var captions []Caption
	for _, line := range strings.Split(raw, "\n") {
		speaker, seconds, content, ok := matchLine(line)
		if !ok {
			continue
		}
		captions = append(captions, Caption{
			Index:   len(captions) + 1,
			Start:   seconds,
			End:     seconds + defaultCaptionSeconds,
			Speaker: speaker,
			Text:    content,
		})
	}
	return captions
}

// Encode renders captions as SRT blocks: index, "start --> end" with
// comma-millisecond timestamps, then "speaker: text" and a blank line.
func Encode(captions []Caption) string {
	var b strings.Builder
	for _, caption := range captions {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s: %s\n\n",
			caption.Index,
			FormatTimestamp(caption.Start),
			FormatTimestamp(caption.End),
			caption.Speaker,
			caption.Text,
		)
	}
	return b.String()
}

// FormatTimestamp renders seconds as "HH:MM:SS,mmm". Milliseconds come from
// the fractional remainder truncated to three digits, not rounded.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	millis := int((seconds - float64(whole)) * 1000)
	hours := whole / 3600
	minutes := (whole % 3600) / 60
	secs := whole % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// FormatReadable re-emits each valid transcript line as four lines — speaker,
// timestamp, content, blank — for human readability. Line matching is as
// tolerant as Decode.
func FormatReadable(raw string) string {
	var blocks []string
	for _, line := range strings.Split(raw, "\n") {
		speaker, _, content, ok := matchLine(line)
		if !ok {
			continue
		}
		timestamp := strings.TrimSpace(strings.SplitN(strings.TrimSpace(line), fieldDelimiter, 3)[1])
		blocks = append(blocks, speaker, timestamp, content, "")
	}
	return strings.Join(blocks, "\n")
}

// matchLine splits a transcript line into its three fields and parses the
// timestamp. ok is false for anything that does not fit the grammar.
func matchLine(line string) (speaker string, seconds float64, content string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", 0, "", false
	}
	parts := strings.SplitN(line, fieldDelimiter, 3)
	if len(parts) != 3 {
		return "", 0, "", false
	}
	seconds, err := parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", 0, "", false
	}
	return parts[0], seconds, parts[2], true
}

// parseClock parses the grammar's "HH:MM:SS" timestamps (no sub-second part).
func parseClock(value string) (float64, error) {
	fields := strings.Split(value, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(fields[0])
	minutes, errM := strconv.Atoi(fields[1])
	secs, errS := strconv.Atoi(fields[2])
	if errH != nil || errM != nil || errS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600 + minutes*60 + secs), nil
}

// ParseTimestamp parses an SRT "HH:MM:SS,mmm" timestamp into seconds. A
// period millisecond separator is accepted as well.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	base, err := parseClock(timeParts[0])
	if err != nil {
		return 0, err
	}
	millis, err := strconv.Atoi(timeParts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return base + float64(millis)/1000, nil
}

// speakerLinePattern pulls "Speaker N: text" entries out of an SRT document.
// Text runs to the next blank line so multi-line cues stay intact.
var speakerLinePattern = regexp.MustCompile(`(?s)Speaker (\d+): (.*?)(\n\n|\z)`)

// ExtractUtterances collects the speaker-tagged lines of an SRT document in
// order. Cue indices and timestamps are ignored; only the speaker number and
// its text survive.
func ExtractUtterances(raw string) []transcript.Utterance {
	matches := speakerLinePattern.FindAllStringSubmatch(raw, -1)
	var utterances []transcript.Utterance
	for _, match := range matches {
		speaker, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		text := strings.TrimSpace(match[2])
		if text == "" {
			continue
		}
		utterances = append(utterances, transcript.Utterance{Speaker: speaker, Text: text})
	}
	return utterances
}

// FromUtterances converts aligned utterances and their owning windows (as
// returned by transcript.AlignWindows) into captions carrying the windows'
// real floating-point boundaries.
func FromUtterances(utterances []transcript.Utterance, windows []transcript.SpeakerTurn) []Caption {
	captions := make([]Caption, 0, len(utterances))
	for i, utterance := range utterances {
		var start, end float64
		if i < len(windows) {
			start = windows[i].Start
			end = windows[i].End
		}
		captions = append(captions, Caption{
			Index:   len(captions) + 1,
			Start:   start,
			End:     end,
			Speaker: fmt.Sprintf("Speaker %d", utterance.Speaker),
			Text:    utterance.Text,
		})
	}
	return captions
}
