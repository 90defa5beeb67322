// Package server provides the orchestrator's HTTP server: a Gin engine on a
// ServeMux, served over HTTP/1.1 and h2c, with a net/http middleware stack
// (server/middleware) and the /health and /info endpoints (server/endpoint).
//
// Server implements the lifecycle through ServerComponent so the bootstrap
// registry starts and stops it alongside the scheduler and executor.
package server
