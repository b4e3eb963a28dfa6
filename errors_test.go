package hubwire

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClientErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClientError
		contains []string
	}{
		{
			name:     "type and message",
			err:      &ClientError{Type: ErrorTypeTransport, Message: "request failed"},
			contains: []string{"Transport", "request failed"},
		},
		{
			name:     "with cause",
			err:      &ClientError{Type: ErrorTypeAuth, Message: "signing app JWT", Cause: fmt.Errorf("bad key")},
			contains: []string{"Auth", "signing app JWT", "bad key"},
		},
		{
			name:     "with request ID",
			err:      &ClientError{Type: ErrorTypeUpstream, Message: "Not Found", RequestID: "req-1"},
			contains: []string{"[req-1]", "Upstream", "Not Found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, missing %q", msg, want)
				}
			}
		})
	}

	var nilErr *ClientError
	if nilErr.Error() != "<nil>" {
		t.Errorf("nil error string = %q", nilErr.Error())
	}
}

func TestClientErrorIs(t *testing.T) {
	err := &ClientError{Type: ErrorTypeAuth, Message: "rejected"}

	if !errors.Is(err, &ClientError{Type: ErrorTypeAuth}) {
		t.Error("errors.Is should match on type")
	}
	if errors.Is(err, &ClientError{Type: ErrorTypeTransport}) {
		t.Error("errors.Is should not match a different type")
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := &ClientError{Type: ErrorTypeTransport, Message: "request failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Message: "Validation Failed", StatusCode: http.StatusUnprocessableEntity}
	if got := err.Error(); !strings.Contains(got, "422") || !strings.Contains(got, "Validation Failed") {
		t.Errorf("Error() = %q", got)
	}

	bare := &APIError{StatusCode: http.StatusBadGateway}
	if got := bare.Error(); !strings.Contains(got, "502") {
		t.Errorf("Error() = %q", got)
	}
}
