// Package history is the append-only run history.
//
// Every state change of a run is an Event appended to a Backend. Runs and
// their activities are never stored directly; they are rebuilt from the
// event log by Replay, so a terminal run can never be rewritten.
//
// Backends:
//
//   - MemoryBackend: in-process, the default and what tests use
//   - GormBackend: the history_events table through the database component
//   - PublishingBackend: decorates another backend and streams each event to Kafka
//
// Archiver exports finished runs as JSON Lines into object storage.
package history
