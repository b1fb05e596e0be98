package client

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// Snapshot is an immutable view of the server's profiles and events at one
// moment. Events are ordered by start.
type Snapshot struct {
	Profiles  []*model.Profile
	Events    []*EventView
	FetchedAt time.Time
}

// Profile returns the profile with the given id, or nil.
func (s *Snapshot) Profile(id string) *model.Profile {
	for _, p := range s.Profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// EventsFor returns the events profileID participates in, in start order.
func (s *Snapshot) EventsFor(profileID string) []*EventView {
	var out []*EventView
	for _, e := range s.Events {
		if slices.Contains(e.Profiles, profileID) {
			out = append(out, e)
		}
	}
	return out
}

// ProfileNames maps profile ids to display names.
func (s *Snapshot) ProfileNames() map[string]string {
	names := make(map[string]string, len(s.Profiles))
	for _, p := range s.Profiles {
		names[p.ID] = p.Name
	}
	return names
}

// State holds the client's current Snapshot. Refresh replaces it
// atomically; readers never see a half-loaded state.
type State struct {
	client Client
	now    func() time.Time

	// refreshing serializes Refresh so an older fetch never replaces a
	// newer Snapshot.
	refreshing sync.Mutex

	mu      sync.RWMutex
	current *Snapshot
}

// NewState creates a State that loads through c. It starts empty.
func NewState(c Client) *State {
	return &State{
		client:  c,
		now:     time.Now,
		current: &Snapshot{},
	}
}

// Current returns the latest Snapshot.
func (s *State) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh fetches every profile (inactive ones included, so old events
// still resolve names) and every event concurrently. On error the previous
// Snapshot stays current. Overlapping calls run one after another.
func (s *State) Refresh(ctx context.Context) (*Snapshot, error) {
	s.refreshing.Lock()
	defer s.refreshing.Unlock()

	var (
		profiles []*model.Profile
		events   *ListEventsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = s.client.ListProfiles(gctx, true)
		if err != nil {
			return fmt.Errorf("loading profiles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		events, err = s.client.ListEvents(gctx, &ListEventsRequest{})
		if err != nil {
			return fmt.Errorf("loading events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Profiles:  profiles,
		Events:    events.Events,
		FetchedAt: s.now(),
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return snap, nil
}
