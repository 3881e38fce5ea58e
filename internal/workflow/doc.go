// Package workflow drives pipeline runs through their fixed stage order.
//
// The Orchestrator accepts conversion requests, creates one run per recording
// identity, and executes validation, transcription, generation and
// finalization sequentially inside a goroutine owned by the run. Every
// transition is persisted through the queue store, appended to the run log,
// and published to observers through the events registry. Any stage error
// moves the run to the failed sink; nothing is retried automatically, and a
// caller retries by submitting the recording again (the stored transcript
// checkpoint is reused).
//
// Transcription stages share a global FIFO admission gate so provider quota
// stays bounded, and transcription and generation each run under their own
// timeout budget. Cancellation is cooperative: a cancel request lets the
// current stage finish and fails the run at the next boundary.
package workflow
