package models

import (
	"fmt"
	"net/mail"
	"strings"
)

// FieldError attaches a message to the request field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures. It never reaches the store:
// the engine rejects the request before any key is touched.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Validate checks field shapes and ranges and fills in the duration default.
func (r *ReservationRequest) Validate() error {
	var ve ValidationError

	if r.Datetime.IsZero() {
		ve.add("datetime", "datetime is required")
	}
	if !IsServiceType(r.ServiceType) {
		ve.add("service_type", fmt.Sprintf("unknown service type %q", r.ServiceType))
	}
	if r.CustomerEmail != "" && !validEmail(r.CustomerEmail) {
		ve.add("customer_email", "invalid email address")
	}
	if r.EstimatedDuration == 0 {
		r.EstimatedDuration = DefaultEstimatedDuration
	}
	if r.EstimatedDuration < MinEstimatedDuration || r.EstimatedDuration > MaxEstimatedDuration {
		ve.add("estimated_duration", fmt.Sprintf("must be between %d and %d minutes", MinEstimatedDuration, MaxEstimatedDuration))
	}

	return ve.orNil()
}

// Validate checks the extension request shape.
func (r *ExtensionRequest) Validate() error {
	var ve ValidationError

	if strings.TrimSpace(r.ReservationID) == "" {
		ve.add("reservation_id", "reservation_id is required")
	}
	if r.CustomerEmail != "" && !validEmail(r.CustomerEmail) {
		ve.add("customer_email", "invalid email address")
	}
	if len(r.Reason) > MaxExtensionReasonLen {
		ve.add("reason", fmt.Sprintf("must be at most %d characters", MaxExtensionReasonLen))
	}

	return ve.orNil()
}
