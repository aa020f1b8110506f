// Package transcribe sends audio chunks to a speech-to-text provider with
// bounded retries.
//
// Attempt n runs under n times the base timeout. A timed-out attempt cancels
// its context, which aborts an HTTP request or terminates the provider's
// process group. Attempts are separated by exponential backoff. A chunk that
// exhausts its attempts yields *TranscriptionFailedError, which classifies as
// transient so the pipeline fails that file and moves on.
package transcribe
