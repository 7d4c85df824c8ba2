// Package logging builds the slog loggers used across redub.
//
// It provides console and JSON handlers, typed attribute helpers, and
// component loggers so pipeline stages and provider clients emit uniform
// structured output. Construct loggers through New or NewFromConfig rather
// than wiring slog handlers directly.
package logging
