package validation

import (
	"errors"
	"strings"
	"testing"
)

type policyInput struct {
	Class       string `validate:"required,endpoint_class"`
	Window      string `validate:"required,positive_duration"`
	MaxRequests int    `validate:"required,min=1"`
}

func TestValidate_PolicyInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      policyInput
		wantErr bool
	}{
		{"valid", policyInput{"auth", "15m", 20}, false},
		{"class case insensitive", policyInput{"API", "1m", 1}, false},
		{"unknown class", policyInput{"admin", "1m", 1}, true},
		{"bad duration", policyInput{"api", "soon", 1}, true},
		{"negative duration", policyInput{"api", "-1m", 1}, true},
		{"zero max", policyInput{"api", "1m", 0}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()
	err := Validate.Struct(policyInput{"api", "soon", 0})
	msg := Message(err)
	if !strings.Contains(msg, "Window failed on 'positive_duration'") || !strings.Contains(msg, "MaxRequests failed on 'required'") {
		t.Errorf("Message() = %q", msg)
	}
	if got := Message(errors.New("boom")); got != "Validation failed" {
		t.Errorf("Message() = %q, want generic message", got)
	}
}
