// Package language provides unified language code normalization and mapping.
//
// All language-related conversions (BCP 47 validation, display names,
// provider-specific codes such as Rev.ai's "cmn" for Mandarin) are
// consolidated here to avoid duplication across the transcription,
// translation, and synthesis packages.
package language
