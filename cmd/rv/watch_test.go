package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/rendezvous/internal/events"
	"github.com/alfredjeanlab/rendezvous/internal/model"
)

type frame struct {
	id, topic, data string
}

func TestReadSSE(t *testing.T) {
	stream := ": connected\n\n" +
		"id:1\nevent:rendezvous.event.created\ndata:{\"a\":1}\n\n" +
		":keepalive\n\n" +
		"id: 2\nevent: rendezvous.event.updated\ndata: line one\ndata: line two\n\n" +
		"event:partial\n" // no terminating blank line

	var got []frame
	err := readSSE(strings.NewReader(stream), func(id, topic string, data []byte) {
		got = append(got, frame{id, topic, string(data)})
	})
	require.NoError(t, err)
	assert.Equal(t, []frame{
		{"1", "rendezvous.event.created", `{"a":1}`},
		{"2", "rendezvous.event.updated", "line one\nline two"},
	}, got)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestDescribe(t *testing.T) {
	profile := &model.Profile{ID: "pf-a", Name: "Alice", Timezone: "Europe/Paris"}
	evt := &model.Event{
		ID:       "ev-1",
		Title:    "Planning",
		Profiles: []string{"pf-a", "pf-c"},
		Timezone: "UTC",
		Start:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name     string
		topic    string
		payload  any
		contains []string
	}{
		{
			name:     "profile created",
			topic:    events.TopicProfileCreated,
			payload:  events.ProfileCreated{Profile: profile},
			contains: []string{"Alice (pf-a, Europe/Paris)"},
		},
		{
			name:     "profile updated",
			topic:    events.TopicProfileUpdated,
			payload:  events.ProfileUpdated{Profile: profile, Changes: map[string]any{"timezone": "Europe/Paris", "name": "Alice"}},
			contains: []string{"Alice (pf-a): name, timezone"},
		},
		{
			name:     "event created",
			topic:    events.TopicEventCreated,
			payload:  events.EventCreated{Event: evt},
			contains: []string{"Planning (ev-1)"},
		},
		{
			name:  "event updated",
			topic: events.TopicEventUpdated,
			payload: events.EventUpdated{
				Event:   evt,
				Entry:   model.UpdateLogEntry{UpdatedBy: "pf-a", Previous: model.Snapshot{Profiles: []string{"pf-b"}}},
				Changes: []string{"Profiles assigned updated", "Description updated"},
			},
			contains: []string{"by pf-a", "Profiles assigned updated; Description updated"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			line, err := describe(tc.topic, mustJSON(t, tc.payload))
			require.NoError(t, err)
			for _, s := range tc.contains {
				assert.Contains(t, line, s)
			}
		})
	}
}

func TestDescribe_Errors(t *testing.T) {
	_, err := describe("rendezvous.unknown", []byte(`{}`))
	assert.Error(t, err)

	_, err = describe(events.TopicEventCreated, []byte(`{}`))
	assert.Error(t, err, "missing event must not panic")

	_, err = describe(events.TopicProfileCreated, []byte(`not json`))
	assert.Error(t, err)
}
