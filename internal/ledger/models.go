package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusUploaded     Status = "uploaded"
	StatusStaged       Status = "staged"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusAligned      Status = "aligned"
	StatusTranslated   Status = "translated"
	StatusSynthesized  Status = "synthesized"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusStaged,
	StatusTranscribing,
	StatusTranscribed,
	StatusAligned,
	StatusTranslated,
	StatusSynthesized,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Run represents one dubbing run persisted in SQLite.
type Run struct {
	ID             int64
	RunID          string
	SourcePath     string
	SourceLang     string
	TargetLang     string
	Status         Status
	TranscriptFile string
	SubtitleFile   string
	TranslatedFile string
	OutputFile     string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a run in this status will never advance again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// HealthSummary describes aggregated run counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Active    int
	Failed    int
	Completed int
}
