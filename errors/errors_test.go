package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew_RetryableDetection(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeTimeout, true},
		{ErrCodeServiceUnavailable, true},
		{ErrCodeNotFound, false},
		{ErrCodeDefinition, false},
		{ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "x", http.StatusTeapot)
			if err.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v for %s, got %v", tt.retryable, tt.code, err.Retryable)
			}
			if err.HTTPStatus != http.StatusTeapot {
				t.Errorf("expected status %d, got %d", http.StatusTeapot, err.HTTPStatus)
			}
		})
	}
}

func TestDefinition_CarriesIssues(t *testing.T) {
	err := Definition("collect", "cycle detected", "unknown parameter \"x\"")
	if err.Code != ErrCodeDefinition {
		t.Fatalf("expected DEFINITION_ERROR, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", err.HTTPStatus)
	}
	issues, ok := err.Details["issues"].([]string)
	if !ok || len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", err.Details["issues"])
	}
	if !strings.Contains(err.Message, "cycle detected") {
		t.Errorf("expected message to list issues, got %q", err.Message)
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("run", "abc")
	if err.Details["id"] != "abc" {
		t.Errorf("expected id=abc, got %v", err.Details["id"])
	}
	if !strings.Contains(err.Message, `"abc"`) {
		t.Errorf("expected id in message, got %q", err.Message)
	}
	if _, ok := NotFound("run", "").Details["id"]; ok {
		t.Error("expected no id detail when id is empty")
	}
}

func TestError_StringIncludesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := DatabaseError(cause)
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected cause in error string, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestAsAppErrorAndHasCode(t *testing.T) {
	wrapped := fmt.Errorf("start run: %w", Conflict("run already finished"))

	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected wrapped AppError to be found")
	}
	if appErr.HTTPStatus != http.StatusConflict {
		t.Errorf("expected 409, got %d", appErr.HTTPStatus)
	}
	if !HasCode(wrapped, ErrCodeConflict) {
		t.Error("expected HasCode to match CONFLICT")
	}
	if HasCode(stderrors.New("plain"), ErrCodeConflict) {
		t.Error("expected plain error not to match")
	}
}

func TestToResponse(t *testing.T) {
	err := InvalidInput("limit", "must be positive").WithDetail("value", -1)
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", resp.Error.Code)
	}
	if resp.Error.Details["field"] != "limit" || resp.Error.Details["value"] != -1 {
		t.Errorf("unexpected details %v", resp.Error.Details)
	}
}
