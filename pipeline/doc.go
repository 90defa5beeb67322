// Package pipeline defines the declarative pipeline model: activities with
// dependency conditions, retry policies and timeouts, ForEach fan-out over an
// item list, parameter binding and placeholder templates.
//
// A Pipeline is data. Loading lives in package definition and execution in
// package executor; this package only normalizes, validates and resolves.
//
//	p.ApplyDefaults()
//	if err := p.Validate(); err != nil {
//	    // *errors.AppError with code DEFINITION_ERROR
//	}
//	vars, err := p.Bind(map[string]string{"base_url": "http://localhost:7071/api"})
package pipeline
