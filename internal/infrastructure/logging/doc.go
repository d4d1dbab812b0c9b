// Package logging provides structured logging for Hearo daemons.
//
// It wraps the standard library's log/slog with configuration-driven
// setup (level, format, output) and a runtime-adjustable level so that
// the IPC SET_DEBUG command can raise or lower verbosity without a
// restart.
//
// Each daemon derives its own logger via With:
//
//	bdLog := log.With("component", "bd")
package logging
