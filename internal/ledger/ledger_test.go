package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

var (
	t0 = time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func standup() *model.Event {
	return &model.Event{
		ID:        "ev-1",
		Title:     "Standup",
		Profiles:  []string{"pf-alice", "pf-bob"},
		Timezone:  "America/New_York",
		Start:     time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 3, 10, 14, 15, 0, 0, time.UTC),
		CreatedBy: "pf-alice",
		Status:    model.StatusPersisted,
	}
}

func TestAppend(t *testing.T) {
	e := standup()
	previous := Snapshot(e)
	intended := previous.Clone()
	intended.Title = "Standup v2"

	entry := Append(e, "pf-bob", previous, intended, t1)

	require.Len(t, e.UpdateLogs, 1)
	assert.Equal(t, "pf-bob", entry.UpdatedBy)
	assert.Equal(t, "Standup", entry.Previous.Title)
	assert.Equal(t, "Standup v2", entry.Intended.Title)
	assert.True(t, entry.UpdatedAt.Equal(t1))
	assert.Equal(t, entry, e.UpdateLogs[0])
}

func TestAppend_PreservesOrder(t *testing.T) {
	e := standup()
	for i, title := range []string{"a", "b", "c"} {
		prev := Snapshot(e)
		next := prev.Clone()
		next.Title = title
		Append(e, "pf-alice", prev, next, t0.Add(time.Duration(i)*time.Minute))
		e.Apply(next)
	}

	logs := List(e)
	require.Len(t, logs, 3)
	assert.Equal(t, "Standup", logs[0].Previous.Title)
	assert.Equal(t, "a", logs[1].Previous.Title)
	assert.Equal(t, "c", logs[2].Intended.Title)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	e := standup()
	previous := Snapshot(e)
	intended := previous.Clone()
	Append(e, "pf-alice", previous, intended, t1)

	// Mutating the event or the caller's snapshots must not reach the ledger.
	e.Profiles[0] = "pf-mallory"
	previous.Profiles[1] = "pf-mallory"
	intended.Title = "rewritten"

	got := List(e)[0]
	assert.Equal(t, []string{"pf-alice", "pf-bob"}, got.Previous.Profiles)
	assert.Equal(t, "Standup", got.Intended.Title)

	// Nor may mutating a listed entry.
	got.Previous.Profiles[0] = "pf-eve"
	assert.Equal(t, "pf-alice", e.UpdateLogs[0].Previous.Profiles[0])
}

func TestList_Empty(t *testing.T) {
	logs := List(standup())
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
}

func TestChanges(t *testing.T) {
	base := Snapshot(standup())

	for _, tc := range []struct {
		name   string
		mutate func(*model.Snapshot)
		want   []string
	}{
		{"None", func(*model.Snapshot) {}, []string{NoChanges}},
		{"ProfilesReordered", func(s *model.Snapshot) { s.Profiles = []string{"pf-bob", "pf-alice"} }, []string{NoChanges}},
		{"Title", func(s *model.Snapshot) { s.Title = "Standup v2" }, []string{`Title changed from "Standup" to "Standup v2"`}},
		{"Description", func(s *model.Snapshot) { s.Description = "daily sync" }, []string{"Description updated"}},
		{"Profiles", func(s *model.Snapshot) { s.Profiles = []string{"pf-alice"} }, []string{"Profiles assigned updated"}},
		{"Timezone", func(s *model.Snapshot) { s.Timezone = "UTC" }, []string{"Timezone changed from America/New_York to UTC"}},
		{"Window", func(s *model.Snapshot) {
			s.Start = s.Start.Add(time.Hour)
			s.End = s.End.Add(time.Hour)
		}, []string{"Start date/time updated", "End date/time updated"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			next := base.Clone()
			tc.mutate(&next)
			got := Changes(model.UpdateLogEntry{Previous: base, Intended: next})
			assert.Equal(t, tc.want, got)
		})
	}
}
