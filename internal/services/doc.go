// Package services holds the error taxonomy and context annotations shared by
// the external provider clients (transcription, diarization, translation,
// synthesis) and the pipeline stages that call them.
package services
