package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("endpoint_class", validateEndpointClass); err != nil {
		panic(fmt.Sprintf("failed to register endpoint_class validator: %v", err))
	}
	if err := Validate.RegisterValidation("positive_duration", validatePositiveDuration); err != nil {
		panic(fmt.Sprintf("failed to register positive_duration validator: %v", err))
	}
}

// validateEndpointClass validates that a string names a known endpoint class
func validateEndpointClass(fl validator.FieldLevel) bool {
	_, err := ratelimit.ParseEndpointClass(fl.Field().String())
	return err == nil
}

// validatePositiveDuration validates a Go duration string greater than zero
func validatePositiveDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(strings.TrimSpace(fl.Field().String()))
	return err == nil && d > 0
}

// Message flattens a validation error into a single client-facing sentence.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation failed"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}
