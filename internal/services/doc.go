// Package services defines the shared error taxonomy and context annotations
// used by the pipeline stages and their backing clients.
//
// Stage implementations wrap failures with one of the exported sentinel
// errors so the workflow manager can classify them when persisting an item's
// failure. Context helpers carry item, stage, and request identifiers so
// loggers deep inside a client can emit correlated records.
package services
