package gemini

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &googleapi.Error{Code: 429, Message: "rate limit"}, true},
		{"server error", &googleapi.Error{Code: 500, Message: "internal"}, true},
		{"unavailable", &googleapi.Error{Code: 503, Message: "overloaded"}, true},
		{"bad request", &googleapi.Error{Code: 400, Message: "invalid argument"}, false},
		{"unauthorized", &googleapi.Error{Code: 401, Message: "bad key"}, false},
		{"forbidden", &googleapi.Error{Code: 403, Message: "quota"}, false},
		{"not found", &googleapi.Error{Code: 404, Message: "no such model"}, false},
		{"wrapped api error", fmt.Errorf("call: %w", &googleapi.Error{Code: 400}), false},
		{"transport", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"plain error", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Fatalf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
