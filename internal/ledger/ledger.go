// Package ledger maintains the per-event audit trail of updates. Entries
// enter only through Append and are never edited or removed.
package ledger

import (
	"fmt"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// Snapshot captures the auditable fields of e as a value copy.
func Snapshot(e *model.Event) model.Snapshot {
	return e.Snapshot()
}

// Append records one update of e by actor and returns the new entry. Both
// snapshots are copied, so callers may keep mutating what they passed in.
func Append(e *model.Event, actor string, previous, intended model.Snapshot, at time.Time) model.UpdateLogEntry {
	entry := model.UpdateLogEntry{
		UpdatedBy: actor,
		Previous:  previous.Clone(),
		Intended:  intended.Clone(),
		UpdatedAt: at.UTC(),
	}
	e.UpdateLogs = append(e.UpdateLogs, entry.Clone())
	return entry
}

// List returns the entries of e oldest first. The result does not share
// memory with e.
func List(e *model.Event) []model.UpdateLogEntry {
	out := make([]model.UpdateLogEntry, len(e.UpdateLogs))
	for i, entry := range e.UpdateLogs {
		out[i] = entry.Clone()
	}
	return out
}

// NoChanges is the summary of an entry whose intended values match the
// previous ones.
const NoChanges = "No changes"

// Changes describes what an entry changed, one line per field, in a fixed
// field order.
func Changes(entry model.UpdateLogEntry) []string {
	prev, next := entry.Previous, entry.Intended

	var out []string
	if prev.Title != next.Title {
		out = append(out, fmt.Sprintf("Title changed from %q to %q", prev.Title, next.Title))
	}
	if prev.Description != next.Description {
		out = append(out, "Description updated")
	}
	if !model.SameProfiles(prev.Profiles, next.Profiles) {
		out = append(out, "Profiles assigned updated")
	}
	if prev.Timezone != next.Timezone {
		out = append(out, fmt.Sprintf("Timezone changed from %s to %s", prev.Timezone, next.Timezone))
	}
	if !prev.Start.Equal(next.Start) {
		out = append(out, "Start date/time updated")
	}
	if !prev.End.Equal(next.End) {
		out = append(out, "End date/time updated")
	}
	if len(out) == 0 {
		out = append(out, NoChanges)
	}
	return out
}
