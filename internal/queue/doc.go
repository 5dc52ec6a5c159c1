// Package queue persists pipeline items in SQLite and enforces the status
// state machine the workflow manager drives: pending through the processing
// substates to ready, with failed reachable from any in-flight state.
//
// The name column is the dedup key: one record per source filename across
// runs, so a repeated batch never pays for a second round of backend calls.
package queue
