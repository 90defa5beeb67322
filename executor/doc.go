// Package executor runs pipelines.
//
// Start validates a pipeline, binds its parameters, records the run in
// history and walks the activity DAG on its own goroutine. Activities whose
// prerequisites are terminal are either dispatched, when every dependency
// condition holds, or skipped. HTTP attempts share one bulkhead per
// Executor; retry waits and ForEach containers hold no slot.
//
// Each attempt runs under its own timeout on a context detached from run
// cancellation, so Cancel stops new attempts and batches but lets in-flight
// requests finish.
package executor
