// Package logging wires log/slog with the console and JSON handlers used
// across the pipeline, plus attribute helpers and context-derived fields so
// stage and item identifiers appear on every record without threading them
// by hand.
package logging
