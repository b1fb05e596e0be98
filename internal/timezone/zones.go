// Package timezone projects absolute instants into the supported IANA zones
// and back. All stored times are UTC; zone arithmetic happens only here.
package timezone

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Default is the zone assigned to new profiles and events when none is given.
const Default = "America/New_York"

var (
	// ErrInvalidTimezone is returned for zone ids outside the allow-list.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrInvalidDateTime is returned when a local date/time string cannot be parsed.
	ErrInvalidDateTime = errors.New("invalid date/time")
)

// Zone is a supported IANA zone with a human label.
type Zone struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var supported = []Zone{
	{ID: "UTC", Label: "UTC"},
	{ID: "America/New_York", Label: "Eastern Time (ET)"},
	{ID: "America/Chicago", Label: "Central Time (CT)"},
	{ID: "America/Denver", Label: "Mountain Time (MT)"},
	{ID: "America/Los_Angeles", Label: "Pacific Time (PT)"},
	{ID: "Europe/London", Label: "London Time (GMT)"},
	{ID: "Europe/Paris", Label: "Paris Time (CET)"},
	{ID: "Asia/Kolkata", Label: "India (IST)"},
	{ID: "Asia/Tokyo", Label: "Japan Time (JST)"},
	{ID: "Australia/Sydney", Label: "Sydney Time (AEST)"},
}

// Supported returns the allow-list in display order.
func Supported() []Zone {
	out := make([]Zone, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether id is on the allow-list.
func IsSupported(id string) bool {
	for _, z := range supported {
		if z.ID == id {
			return true
		}
	}
	return false
}

// Label returns the human label for id, or id itself when unknown.
func Label(id string) string {
	for _, z := range supported {
		if z.ID == id {
			return z.Label
		}
	}
	return id
}

var locations sync.Map // zone id -> *time.Location

// Load resolves an allow-listed zone id to a location.
func Load(id string) (*time.Location, error) {
	if !IsSupported(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, id)
	}
	if loc, ok := locations.Load(id); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, id, err)
	}
	locations.Store(id, loc)
	return loc, nil
}

// Convert returns instant expressed in the zone.
func Convert(instant time.Time, id string) (time.Time, error) {
	loc, err := Load(id)
	if err != nil {
		return time.Time{}, err
	}
	return instant.In(loc), nil
}
