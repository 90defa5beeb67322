// Package errors defines AppError, the orchestrator's structured error, its
// codes, and the JSON body the operator API returns for it.
package errors
