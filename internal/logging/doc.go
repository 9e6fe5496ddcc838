// Package logging assembles structured slog loggers and formatting helpers used
// across nogal.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes attribute helpers so components tag log lines with the same
// keys. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
//
// Human-facing progress lines ("Deleted: pacman.zip") are not logs; the
// curation engine writes those to its own streams. Structured logs default to
// stderr so they never interleave with list output on stdout.
package logging
