// Package transcript defines the timed-segment types produced by the
// transcription and diarization providers and the aligner that fuses the two
// streams into ordered, speaker-tagged utterances.
package transcript
