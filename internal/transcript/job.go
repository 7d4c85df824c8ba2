package transcript

// JobState is the lifecycle of an asynchronous transcription job.
type JobState string

const (
	JobPending    JobState = "pending"
	JobInProgress JobState = "in_progress"
	JobSucceeded  JobState = "succeeded"
	JobFailed     JobState = "failed"
)

// Terminal reports whether the state ends the job's poll loop.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}
