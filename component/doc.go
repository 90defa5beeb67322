// Package component defines the lifecycle contract shared by the
// orchestrator's long-running parts: storage connections, the HTTP server,
// the executor and the scheduler loop.
//
// Components are registered with a Registry, started in registration order
// and stopped in reverse order by package bootstrap.
package component
