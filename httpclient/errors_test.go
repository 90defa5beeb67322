package httpclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantNil   bool
		code      ErrorCode
		retryable bool
	}{
		{200, true, 0, false},
		{204, true, 0, false},
		{304, false, ErrCodeServer, false},
		{400, false, ErrCodeValidation, false},
		{401, false, ErrCodeAuth, false},
		{403, false, ErrCodeAuth, false},
		{404, false, ErrCodeNotFound, false},
		{429, false, ErrCodeRateLimit, true},
		{500, false, ErrCodeServer, true},
		{503, false, ErrCodeServer, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP_%d", tt.status), func(t *testing.T) {
			err := ClassifyStatusCode(tt.status, nil)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, err.Retryable)
			}
			if err.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, err.StatusCode)
			}
		})
	}
}

func TestClassifyStatusCode_QuotesTruncatedBody(t *testing.T) {
	body := strings.Repeat("x", bodySnippetLen+50)
	err := ClassifyStatusCode(502, []byte(body))
	if !strings.HasSuffix(err.Message, "...") {
		t.Fatalf("expected truncated body snippet, got %q", err.Message)
	}
	if !strings.HasPrefix(err.Message, "Bad Gateway: ") {
		t.Fatalf("expected status text prefix, got %q", err.Message)
	}
}

func TestErrorHelpers(t *testing.T) {
	timeout := NewTimeoutError(context.DeadlineExceeded)
	if !IsTimeout(timeout) || !IsRetryable(timeout) {
		t.Error("expected retryable timeout")
	}
	if !errors.Is(timeout, context.DeadlineExceeded) {
		t.Error("expected timeout to unwrap to DeadlineExceeded")
	}
	wrapped := fmt.Errorf("attempt 2: %w", ClassifyStatusCode(404, nil))
	if !IsNotFound(wrapped) {
		t.Error("expected wrapped 404 to be detected")
	}
	if StatusCodeOf(wrapped) != 404 {
		t.Errorf("expected 404, got %d", StatusCodeOf(wrapped))
	}
	if StatusCodeOf(errors.New("plain")) != 0 {
		t.Error("expected 0 for plain errors")
	}
	if ErrorCode(99).String() != "unknown" {
		t.Error("expected unknown for out-of-range code")
	}
}
