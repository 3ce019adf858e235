package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for use as metric labels.
func TestCategorizeError(t *testing.T) {
	// name: test case description; err: input error; want: expected ErrorCategory.
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil error", nil, ""},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"canceled context", context.Canceled, ErrorCategoryTimeout},
		{"timeout sentinel", ErrTimeout, ErrorCategoryTimeout},
		{"wrapped timeout", fmt.Errorf("fetch page: %w", ErrTimeout), ErrorCategoryTimeout},
		{"station not found", ErrStationNotFound, ErrorCategoryStationNotFound},
		{"wrapped station not found", fmt.Errorf("readings: %w", ErrStationNotFound), ErrorCategoryStationNotFound},
		{"rate limited", ErrRateLimited, ErrorCategoryRateLimited},
		{"network sentinel", ErrNetwork, ErrorCategoryNetwork},
		{"timeout in message", errors.New("request timeout exceeded"), ErrorCategoryTimeout},
		{"connection in message", errors.New("connection refused"), ErrorCategoryNetwork},
		{"parse in message", errors.New("parse response: invalid json"), ErrorCategoryParsing},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}
