package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/rendezvous/internal/client"
)

func TestWindowValue(t *testing.T) {
	instant, local := windowValue("2024-03-10T07:00:00Z")
	require.NotNil(t, instant)
	assert.Empty(t, local)
	assert.True(t, instant.Equal(time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)))

	instant, local = windowValue("2024-03-10T09:00")
	assert.Nil(t, instant)
	assert.Equal(t, "2024-03-10T09:00", local)
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		name string
		in   string
		zone string
		want *time.Time
		err  bool
	}{
		{name: "empty", in: "", want: nil},
		{name: "rfc3339", in: "2024-03-01T12:00:00Z", zone: "Asia/Tokyo", want: ptrTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))},
		{name: "date in zone", in: "2024-03-01", zone: "America/New_York", want: ptrTime(time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC))},
		{name: "date defaults to utc", in: "2024-03-01", want: ptrTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{name: "garbage", in: "next tuesday", err: true},
		{name: "unsupported zone", in: "2024-03-01", zone: "Mars/Olympus", err: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseBound(tc.in, tc.zone)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tc.want), "got %s, want %s", got, tc.want)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

// parsedUpdate runs updateRequest against a fresh command parsed from args.
func parsedUpdate(t *testing.T, args ...string) (*client.UpdateEventRequest, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "update"}
	addUpdateFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return updateRequest(cmd)
}

func TestUpdateRequest_OnlyChangedFlags(t *testing.T) {
	req, err := parsedUpdate(t, "--title", "Standup")
	require.NoError(t, err)

	v, ok := req.Title.Get()
	require.True(t, ok)
	assert.Equal(t, "Standup", v)
	assert.False(t, req.Description.Set)
	assert.False(t, req.Profiles.Set)
	assert.False(t, req.Timezone.Set)
	assert.False(t, req.Start.Set)
	assert.False(t, req.StartLocal.Set)
}

func TestUpdateRequest_EmptyTitleIsStillSet(t *testing.T) {
	req, err := parsedUpdate(t, "--title", "")
	require.NoError(t, err)
	v, ok := req.Title.Get()
	require.True(t, ok, "an explicit empty title must reach the server to be rejected there")
	assert.Empty(t, v)
}

func TestUpdateRequest_Description(t *testing.T) {
	req, err := parsedUpdate(t, "--clear-description")
	require.NoError(t, err)
	assert.True(t, req.Description.Set && req.Description.Null)

	req, err = parsedUpdate(t, "--description", "agenda")
	require.NoError(t, err)
	v, ok := req.Description.Get()
	require.True(t, ok)
	assert.Equal(t, "agenda", v)

	_, err = parsedUpdate(t, "--description", "agenda", "--clear-description")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestUpdateRequest_Window(t *testing.T) {
	req, err := parsedUpdate(t,
		"--start", "2024-03-10T07:00:00Z",
		"--end", "2024-03-10T10:00",
		"--with", "pf-a,pf-b",
		"--tz", "Europe/Paris",
	)
	require.NoError(t, err)

	start, ok := req.Start.Get()
	require.True(t, ok)
	assert.True(t, start.Equal(time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)))
	assert.False(t, req.StartLocal.Set)

	end, ok := req.EndLocal.Get()
	require.True(t, ok)
	assert.Equal(t, "2024-03-10T10:00", end)
	assert.False(t, req.End.Set)

	profiles, ok := req.Profiles.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"pf-a", "pf-b"}, profiles)

	tz, ok := req.Timezone.Get()
	require.True(t, ok)
	assert.Equal(t, "Europe/Paris", tz)
}

func TestRequireProfile(t *testing.T) {
	prev := profileID
	t.Cleanup(func() { profileID = prev })

	profileID = ""
	_, err := requireProfile()
	assert.ErrorContains(t, err, "--profile")

	profileID = "pf-me"
	id, err := requireProfile()
	require.NoError(t, err)
	assert.Equal(t, "pf-me", id)
}
