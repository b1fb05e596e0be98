package model

import "time"

// ProfileFilter holds criteria for querying profiles.
type ProfileFilter struct {
	IncludeInactive bool     `json:"include_inactive,omitempty"`
	IDs             []string `json:"ids,omitempty"`
}

// EventFilter holds criteria for querying events. Results are always ordered
// by start ascending.
type EventFilter struct {
	ProfileID string     `json:"profile_id,omitempty"` // only events the profile participates in
	From      *time.Time `json:"from,omitempty"`       // events ending after From
	To        *time.Time `json:"to,omitempty"`         // events starting before To
}

// Matches reports whether e satisfies the filter.
func (f EventFilter) Matches(e *Event) bool {
	if f.ProfileID != "" && !e.HasProfile(f.ProfileID) {
		return false
	}
	if f.From != nil && !e.End.After(*f.From) {
		return false
	}
	if f.To != nil && !e.Start.Before(*f.To) {
		return false
	}
	return true
}
