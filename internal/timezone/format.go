package timezone

import (
	"fmt"
	"strings"
	"time"
)

const (
	// EditableLayout is the minute-precision form used by edit forms.
	EditableLayout = "2006-01-02T15:04"

	editableLayoutSeconds = "2006-01-02T15:04:05"

	dateAndTimeLayout = "Jan 2, 2006 3:04 PM"
	dateOnlyLayout    = "Jan 2, 2006"
	timeOnlyLayout    = "3:04 PM"
)

// Style selects a display format.
type Style string

const (
	StyleDateAndTime Style = "dateAndTime"
	StyleDateOnly    Style = "dateOnly"
	StyleTimeOnly    Style = "timeOnly"
)

// IsValid reports whether the style is a known value.
func (s Style) IsValid() bool {
	switch s {
	case StyleDateAndTime, StyleDateOnly, StyleTimeOnly:
		return true
	}
	return false
}

func (s Style) layout() string {
	switch s {
	case StyleDateOnly:
		return dateOnlyLayout
	case StyleTimeOnly:
		return timeOnlyLayout
	default:
		return dateAndTimeLayout
	}
}

// ToLocalEditable formats instant as zone-local wall-clock time truncated to
// the minute. The zone offset in effect at that instant is applied.
func ToLocalEditable(instant time.Time, zoneID string) (string, error) {
	loc, err := Load(zoneID)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Truncate(time.Minute).Format(EditableLayout), nil
}

// ToLocalDisplay formats instant for humans in the given style. An empty
// style means StyleDateAndTime.
func ToLocalDisplay(instant time.Time, zoneID string, style Style) (string, error) {
	loc, err := Load(zoneID)
	if err != nil {
		return "", err
	}
	if style == "" {
		style = StyleDateAndTime
	}
	if !style.IsValid() {
		return "", fmt.Errorf("unknown display style %q", style)
	}
	return instant.In(loc).Format(style.layout()), nil
}

// FromLocalEditable parses a zone-local wall-clock string into a UTC instant.
// Wall-clock times skipped by a DST transition resolve the way time.Date does.
// A repeated wall-clock time reads as its first occurrence, so the second
// occurrence does not survive a round trip through ToLocalEditable.
func FromLocalEditable(local, zoneID string) (time.Time, error) {
	loc, err := Load(zoneID)
	if err != nil {
		return time.Time{}, err
	}
	s := strings.TrimSpace(local)
	t, err := time.ParseInLocation(EditableLayout, s, loc)
	if err != nil {
		t, err = time.ParseInLocation(editableLayoutSeconds, s, loc)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, local)
	}
	return t.UTC(), nil
}
