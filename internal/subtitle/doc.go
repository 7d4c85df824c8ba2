// Package subtitle implements the caption text formats the pipeline reads and
// writes: the four-space-delimited transcript line grammar produced by the
// transcription provider, SRT-style timed caption blocks, and the readable
// per-entry transcript layout.
//
// The decoder is tolerant by design: lines that do not match the grammar are
// skipped silently, never reported as errors.
package subtitle
