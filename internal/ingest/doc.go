// Package ingest discovers source video recordings and registers them as
// pending queue items. Discovery runs either as a one-shot directory scan or
// as a filesystem watch. Items are deduplicated by filename, so rescanning a
// directory never creates duplicate work.
package ingest
