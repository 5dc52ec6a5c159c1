// Package workflow advances queue items through the processing stages.
//
// The Manager polls the queue with a bounded pool of workers. Each worker
// atomically claims an item, runs the stage matching its status (audio
// extraction, transcription, summarization), and persists the result before
// looking for more work. A failure moves only the failed item to the failed
// status; unrelated items keep flowing.
//
// On startup the manager rolls items left mid-stage by an interrupted run
// back to the nearest resumable status, so completed work (an extracted
// audio artifact, a stored transcript) is not repeated.
package workflow
