package model

import (
	"errors"

	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// Error kinds surfaced to callers. None are retried; all are detected before
// any persistent write.
var (
	ErrInvalidEventWindow = errors.New("event end must be after start")
	ErrEmptyProfileSet    = errors.New("event must have at least one profile")
	ErrUnknownProfile     = errors.New("unknown profile")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")

	ErrInvalidTimezone = timezone.ErrInvalidTimezone
	ErrInvalidDateTime = timezone.ErrInvalidDateTime
)

// Wire codes for the error kinds.
const (
	CodeInvalidEventWindow = "invalid_event_window"
	CodeEmptyProfileSet    = "empty_profile_set"
	CodeUnknownProfile     = "unknown_profile"
	CodeNotFound           = "not_found"
	CodeInvalidTimezone    = "invalid_timezone"
	CodeInvalidDateTime    = "invalid_datetime"
	CodeInvalidInput       = "invalid_input"
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrInvalidEventWindow, CodeInvalidEventWindow},
	{ErrEmptyProfileSet, CodeEmptyProfileSet},
	{ErrUnknownProfile, CodeUnknownProfile},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidTimezone, CodeInvalidTimezone},
	{ErrInvalidDateTime, CodeInvalidDateTime},
	{ErrInvalidInput, CodeInvalidInput},
}

// ErrorCode returns the wire code of the first known kind err matches, or ""
// for infrastructure errors.
func ErrorCode(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return ""
}

// KindForCode is the inverse of ErrorCode.
func KindForCode(code string) error {
	for _, k := range kinds {
		if k.code == code {
			return k.err
		}
	}
	return nil
}
