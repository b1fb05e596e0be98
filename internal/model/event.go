package model

import (
	"slices"
	"time"
)

// EventStatus is the lifecycle state of an event. Only persisted events are
// ever stored; drafts exist on the client until created.
type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusPersisted EventStatus = "persisted"
)

// String returns the string representation of the status.
func (s EventStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s EventStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPersisted:
		return true
	}
	return false
}

// Event is a scheduled time window shared by one or more profiles.
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Profiles    []string    `json:"profiles"`
	Timezone    string      `json:"timezone"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	CreatedBy   string      `json:"created_by"`
	Status      EventStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	UpdateLogs []UpdateLogEntry `json:"update_logs"`
}

// Snapshot is a value copy of the auditable fields of an Event.
type Snapshot struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Timezone    string    `json:"timezone"`
	Profiles    []string  `json:"profiles"`
}

// UpdateLogEntry is one immutable audit record of a single update call.
// Intended holds the values the request asked for, overlaid on the values
// current at the time.
type UpdateLogEntry struct {
	UpdatedBy string    `json:"updated_by"`
	Previous  Snapshot  `json:"previous"`
	Intended  Snapshot  `json:"intended"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures the auditable fields of e. The profile slice is copied,
// so later mutation of e does not reach the snapshot.
func (e *Event) Snapshot() Snapshot {
	return Snapshot{
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		Timezone:    e.Timezone,
		Profiles:    slices.Clone(e.Profiles),
	}
}

// Apply commits the fields of s onto e.
func (e *Event) Apply(s Snapshot) {
	e.Title = s.Title
	e.Description = s.Description
	e.Start = s.Start
	e.End = s.End
	e.Timezone = s.Timezone
	e.Profiles = slices.Clone(s.Profiles)
}

// HasProfile reports whether id participates in e.
func (e *Event) HasProfile(id string) bool {
	return slices.Contains(e.Profiles, id)
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Profiles = slices.Clone(e.Profiles)
	c.UpdateLogs = make([]UpdateLogEntry, len(e.UpdateLogs))
	for i, entry := range e.UpdateLogs {
		c.UpdateLogs[i] = entry.Clone()
	}
	return &c
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	s.Profiles = slices.Clone(s.Profiles)
	return s
}

// Equal reports whether two snapshots hold the same values. Profiles are
// compared as sets.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Title == o.Title &&
		s.Description == o.Description &&
		s.Start.Equal(o.Start) &&
		s.End.Equal(o.End) &&
		s.Timezone == o.Timezone &&
		SameProfiles(s.Profiles, o.Profiles)
}

// Clone returns a deep copy of the entry.
func (u UpdateLogEntry) Clone() UpdateLogEntry {
	u.Previous = u.Previous.Clone()
	u.Intended = u.Intended.Clone()
	return u
}

// SameProfiles compares two id lists ignoring order and duplicates.
func SameProfiles(a, b []string) bool {
	return slices.Equal(NormalizeProfiles(a), NormalizeProfiles(b))
}

// NormalizeProfiles returns ids sorted with duplicates removed.
func NormalizeProfiles(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// DedupeProfiles drops repeated ids while keeping first-seen order.
func DedupeProfiles(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
