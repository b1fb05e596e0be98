package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// stubClient serves canned lists and embeds Client so unused methods panic.
type stubClient struct {
	Client
	profiles    []*model.Profile
	events      []*EventView
	profilesErr error
	eventsErr   error
}

func (s *stubClient) ListProfiles(_ context.Context, includeInactive bool) ([]*model.Profile, error) {
	if !includeInactive {
		return nil, errors.New("state must load inactive profiles")
	}
	return s.profiles, s.profilesErr
}

func (s *stubClient) ListEvents(_ context.Context, _ *ListEventsRequest) (*ListEventsResponse, error) {
	if s.eventsErr != nil {
		return nil, s.eventsErr
	}
	return &ListEventsResponse{Events: s.events, Total: len(s.events)}, nil
}

func view(id string, profiles ...string) *EventView {
	return &EventView{Event: model.Event{ID: id, Profiles: profiles}}
}

func TestState_Refresh(t *testing.T) {
	stub := &stubClient{
		profiles: []*model.Profile{
			{ID: "pf-1", Name: "Alice", IsActive: true},
			{ID: "pf-2", Name: "Bob"},
		},
		events: []*EventView{view("ev-1", "pf-1"), view("ev-2", "pf-1", "pf-2"), view("ev-3", "pf-2")},
	}
	st := NewState(stub)
	fetched := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return fetched }

	assert.Empty(t, st.Current().Events)

	snap, err := st.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, st.Current())
	assert.Equal(t, fetched, snap.FetchedAt)
	assert.Len(t, snap.Events, 3)

	assert.Equal(t, "Bob", snap.Profile("pf-2").Name)
	assert.Nil(t, snap.Profile("pf-9"))
	assert.Equal(t, map[string]string{"pf-1": "Alice", "pf-2": "Bob"}, snap.ProfileNames())

	var ids []string
	for _, e := range snap.EventsFor("pf-2") {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"ev-2", "ev-3"}, ids)
	assert.Empty(t, snap.EventsFor("pf-9"))
}

// gatedClient holds its first ListEvents call until release is closed and
// answers later calls at once, each with a distinct event.
type gatedClient struct {
	Client
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedClient) ListProfiles(context.Context, bool) ([]*model.Profile, error) {
	return nil, nil
}

func (g *gatedClient) ListEvents(ctx context.Context, _ *ListEventsRequest) (*ListEventsResponse, error) {
	n := g.calls.Add(1)
	if n == 1 {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ListEventsResponse{Events: []*EventView{view(fmt.Sprintf("ev-%d", n))}}, nil
}

func TestState_RefreshOverlapping(t *testing.T) {
	gc := &gatedClient{entered: make(chan struct{}), release: make(chan struct{})}
	st := NewState(gc)

	firstDone := make(chan error, 1)
	go func() {
		_, err := st.Refresh(context.Background())
		firstDone <- err
	}()
	<-gc.entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := st.Refresh(context.Background())
		secondDone <- err
	}()

	select {
	case <-secondDone:
		t.Fatal("second refresh finished while the first was still fetching")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), gc.calls.Load(), "second fetch started before the first stored")

	close(gc.release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	require.Len(t, st.Current().Events, 1)
	assert.Equal(t, "ev-2", st.Current().Events[0].ID, "newest fetch must stay current")
}

func TestState_RefreshErrorKeepsPrevious(t *testing.T) {
	stub := &stubClient{events: []*EventView{view("ev-1", "pf-1")}}
	st := NewState(stub)
	first, err := st.Refresh(context.Background())
	require.NoError(t, err)

	stub.eventsErr = errors.New("connection refused")
	_, err = st.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading events")
	assert.Same(t, first, st.Current())

	stub.eventsErr = nil
	stub.profilesErr = &APIError{StatusCode: 404, Code: model.CodeNotFound, Message: "gone"}
	_, err = st.Refresh(context.Background())
	assert.True(t, IsNotFound(err))
	assert.Same(t, first, st.Current())
}

func TestState_RefreshLive(t *testing.T) {
	transports(t, func(t *testing.T, c Client) {
		ctx := context.Background()
		p, err := c.CreateProfile(ctx, &CreateProfileRequest{Name: "Alice", Timezone: "UTC"})
		require.NoError(t, err)
		start := utc("2024-03-10T07:00:00Z")
		_, err = c.CreateEvent(ctx, &CreateEventRequest{
			Title: "Standup", Profiles: []string{p.ID}, Start: &start, End: ptr(start.Add(time.Hour)), CreatedBy: p.ID,
		})
		require.NoError(t, err)

		snap, err := NewState(c).Refresh(ctx)
		require.NoError(t, err)
		require.Len(t, snap.EventsFor(p.ID), 1)
		assert.Equal(t, "Alice", snap.ProfileNames()[p.ID])
	})
}
