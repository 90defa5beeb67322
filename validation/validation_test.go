package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("name", "collect")
	if v.HasErrors() {
		t.Error("expected no errors for valid input")
	}

	v2 := New()
	v2.Required("name", "   ")
	if !v2.HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorRange(t *testing.T) {
	tests := []struct {
		value   int
		wantErr bool
	}{
		{0, false},
		{23, false},
		{24, true},
		{-1, true},
	}
	for _, tt := range tests {
		v := New().Range("hour", tt.value, 0, 23)
		if v.HasErrors() != tt.wantErr {
			t.Errorf("Range(%d): expected error=%v, got %v", tt.value, tt.wantErr, v.Errors())
		}
	}
}

func TestValidatorOneOf(t *testing.T) {
	v := New()
	v.OneOf("condition", "Succeeded", []string{"Succeeded", "Failed", "Completed"})
	v.OneOf("condition", "", []string{"Succeeded"})
	if v.HasErrors() {
		t.Fatalf("expected no errors, got %v", v.Errors())
	}

	v.OneOf("condition", "Done", []string{"Succeeded", "Failed"})
	if !v.HasErrors() {
		t.Fatal("expected error for value outside the allowed set")
	}
	if !strings.Contains(v.Errors()[0].Message, "Succeeded, Failed") {
		t.Errorf("expected allowed values in message, got %q", v.Errors()[0].Message)
	}
}

func TestValidatorMergeAndMessages(t *testing.T) {
	v := New()
	v.Merge("activities[1]", []FieldError{{Field: "name", Message: "is required"}, {Message: "bad"}})
	v.Addf("activities", "duplicate name %q", "health")

	msgs := v.Messages()
	want := []string{
		"activities[1].name: is required",
		"activities[1]: bad",
		`activities: duplicate name "health"`,
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %v", len(want), msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d: expected %q, got %q", i, want[i], msgs[i])
		}
	}
}

func TestValidatorValidate(t *testing.T) {
	if appErr := New().Required("name", "x").Validate(); appErr != nil {
		t.Fatalf("expected nil, got %v", appErr)
	}

	appErr := New().Required("name", "").Min("every", 0, 1).Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Details == nil {
		t.Fatal("expected details in error")
	}
	if !strings.Contains(appErr.Message, "name") || !strings.Contains(appErr.Message, "every") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
}

type header struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

type call struct {
	ActivityName string   `json:"activity_name" validate:"required"`
	Method       string   `json:"method" validate:"omitempty,oneof=GET POST"`
	Attempts     int      `validate:"gte=0"`
	Headers      []header `json:"headers" validate:"dive"`
}

func TestCheckUsesJSONPaths(t *testing.T) {
	errs := Check(call{Method: "PATCH", Attempts: -1, Headers: []header{{Value: "x"}}})
	got := map[string]string{}
	for _, e := range errs {
		got[e.Field] = e.Message
	}

	if got["activity_name"] != "is required" {
		t.Errorf("expected activity_name required, got %v", got)
	}
	if got["method"] != "must be one of: GET, POST" {
		t.Errorf("expected method oneof message, got %q", got["method"])
	}
	if got["attempts"] != "must be >= 0" {
		t.Errorf("expected snake_case fallback for untagged field, got %v", got)
	}
	if got["headers[0].name"] != "is required" {
		t.Errorf("expected nested header path, got %v", got)
	}
}

func TestValidateValid(t *testing.T) {
	if err := Validate(call{ActivityName: "health", Method: "GET"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateInvalid(t *testing.T) {
	err := Validate(call{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "activity_name") {
		t.Errorf("expected error to mention activity_name, got %q", err.Error())
	}
}

func TestValidateUUID(t *testing.T) {
	valid := uuid.New().String()
	id, err := ValidateUUID("run_id", valid)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id.String() != valid {
		t.Errorf("expected %s, got %s", valid, id)
	}

	if _, err := ValidateUUID("run_id", ""); err == nil {
		t.Error("expected error for empty UUID")
	}
	if _, err := ValidateUUID("run_id", "bad"); err == nil {
		t.Error("expected error for invalid UUID")
	}
}
