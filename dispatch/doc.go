// Package dispatch runs documents through an OCR collaborator under a
// global concurrency ceiling.
//
// Every document passes through the same policy stack: retry (fixed delay or
// exponential backoff) of failures core.IsRetryable accepts, then substitution of ai.EmptyOCRResult for documents
// that failed every attempt, then a shared worker pool. The dispatcher
// offers several ways to feed it:
//
//   - ProcessOne: a single document, waiting for its result
//   - Process: a stream of documents, results in completion order
//   - ProcessBatches: fixed-size chunks processed one after another, with a report per chunk
//   - ProcessAnnotated: per-document (input, result, error) triples, retry only
//   - ProcessPrioritized: waiting documents with the lowest priority value go first
//
// Close stops admission. Calls already running are not interrupted.
package dispatch
