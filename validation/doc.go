// Package validation checks configuration, definitions and API payloads.
//
// Struct tags are evaluated with go-playground/validator and reported using
// json field paths:
//
//	type Retry struct {
//	    MaxAttempts int `json:"max_attempts" validate:"gte=0"`
//	}
//	err := validation.Validate(retry)
//
// Cross-field rules that tags cannot express are gathered with a Validator:
//
//	v := validation.New()
//	v.Custom(len(p.Activities) > 0, "activities", "must not be empty")
//	issues := v.Messages()
package validation
