// Package resilience holds the fault-tolerance primitives the orchestrator
// builds on:
//   - Retry: bounded attempts with fixed or exponential waits
//   - Bulkhead: a blocking concurrency cap
//   - RateLimiter: a token bucket for outbound calls
package resilience
