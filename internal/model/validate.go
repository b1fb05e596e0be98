package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

const (
	maxTitleLength = 500
	maxNameLength  = 200
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field. Kind
// is one of the package error kinds and drives errors.Is.
type FieldError struct {
	Field   string
	Message string
	Kind    error
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the kinds of the field errors, so errors.Is(err,
// ErrInvalidEventWindow) holds when any field failed that way.
func (e *ValidationError) Unwrap() []error {
	var out []error
	for _, fe := range e.Errors {
		kind := fe.Kind
		if kind == nil {
			kind = ErrInvalidInput
		}
		if !slices.Contains(out, kind) {
			out = append(out, kind)
		}
	}
	return out
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string, kind error) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message, Kind: kind})
}

// Err returns e when it has errors, otherwise nil.
func (e *ValidationError) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateProfile checks a Profile for constraint violations.
func ValidateProfile(p *Profile) error {
	var ve ValidationError

	name := strings.TrimSpace(p.Name)
	if name == "" {
		ve.Add("name", "is required", ErrInvalidInput)
	} else if len([]rune(name)) > maxNameLength {
		ve.Add("name", fmt.Sprintf("must be %d characters or fewer", maxNameLength), ErrInvalidInput)
	}

	if !timezone.IsSupported(p.Timezone) {
		ve.Add("timezone", fmt.Sprintf("unsupported zone %q", p.Timezone), ErrInvalidTimezone)
	}

	return ve.Err()
}

// ValidateEvent checks the shape of an Event: title, zone, window and a
// non-empty participant set. Whether participants exist is checked by the
// caller against the store.
func ValidateEvent(e *Event) error {
	var ve ValidationError
	validateSnapshot(&ve, e.Snapshot())
	if strings.TrimSpace(e.CreatedBy) == "" {
		ve.Add("created_by", "is required", ErrUnknownProfile)
	}
	return ve.Err()
}

// ValidateSnapshot checks the auditable field set of an Event.
func ValidateSnapshot(s Snapshot) error {
	var ve ValidationError
	validateSnapshot(&ve, s)
	return ve.Err()
}

func validateSnapshot(ve *ValidationError, s Snapshot) {
	title := strings.TrimSpace(s.Title)
	if title == "" {
		ve.Add("title", "is required", ErrInvalidInput)
	} else if len([]rune(title)) > maxTitleLength {
		ve.Add("title", fmt.Sprintf("must be %d characters or fewer", maxTitleLength), ErrInvalidInput)
	}

	if !timezone.IsSupported(s.Timezone) {
		ve.Add("timezone", fmt.Sprintf("unsupported zone %q", s.Timezone), ErrInvalidTimezone)
	}

	if s.Start.IsZero() || s.End.IsZero() {
		ve.Add("start", "start and end are required", ErrInvalidEventWindow)
	} else if !s.End.After(s.Start) {
		ve.Add("end", "must be after start", ErrInvalidEventWindow)
	}

	if len(s.Profiles) == 0 {
		ve.Add("profiles", "at least one profile is required", ErrEmptyProfileSet)
	}
	for _, id := range s.Profiles {
		if strings.TrimSpace(id) == "" {
			ve.Add("profiles", "contains an empty id", ErrUnknownProfile)
			break
		}
	}
}
