// Package memory implements store.Store in process memory. It backs
// development servers and tests; contents are lost on exit.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
)

// Store is an in-memory store.Store. Transactions serialize on a store-wide
// lock and roll back by restoring the maps captured when they began.
type Store struct {
	mu sync.RWMutex
	st state
}

// state holds the data. Stored values are never mutated in place: every
// write replaces the map entry with a fresh clone, so a shallow copy of the
// maps is a consistent snapshot.
type state struct {
	profiles map[string]*model.Profile
	events   map[string]*model.Event
	activity []*model.Activity
	nextID   int64
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: state{
		profiles: make(map[string]*model.Profile),
		events:   make(map[string]*model.Event),
	}}
}

func (s *Store) CreateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createProfile(p)
}

func (s *Store) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getProfile(id)
}

func (s *Store) GetProfiles(_ context.Context, ids []string) ([]*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getProfiles(ids), nil
}

func (s *Store) ListProfiles(_ context.Context, filter model.ProfileFilter) ([]*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listProfiles(filter), nil
}

func (s *Store) UpdateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateProfile(p)
}

func (s *Store) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createEvent(e)
}

func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.getEvent(id)
}

func (s *Store) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.GetEvent(ctx, id)
}

func (s *Store) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listEvents(filter), nil
}

func (s *Store) UpdateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateEvent(e)
}

func (s *Store) AppendUpdateLog(_ context.Context, eventID string, entry model.UpdateLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.appendUpdateLog(eventID, entry)
}

func (s *Store) ListUpdateLogs(_ context.Context, eventID string) ([]model.UpdateLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listUpdateLogs(eventID)
}

func (s *Store) RecordActivity(_ context.Context, a *model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.recordActivity(a)
	return nil
}

func (s *Store) ListActivity(_ context.Context, subjectID string) ([]*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.listActivity(subjectID), nil
}

// RunInTransaction holds the store lock for the duration of fn. If fn
// returns an error every write it made is discarded.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.snapshot()
	if err := fn(&txStore{st: &s.st}); err != nil {
		s.st = saved
		return err
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// txStore runs against the state of a Store whose lock is already held.
type txStore struct {
	st *state
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) CreateProfile(_ context.Context, p *model.Profile) error {
	return t.st.createProfile(p)
}

func (t *txStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	return t.st.getProfile(id)
}

func (t *txStore) GetProfiles(_ context.Context, ids []string) ([]*model.Profile, error) {
	return t.st.getProfiles(ids), nil
}

func (t *txStore) ListProfiles(_ context.Context, filter model.ProfileFilter) ([]*model.Profile, error) {
	return t.st.listProfiles(filter), nil
}

func (t *txStore) UpdateProfile(_ context.Context, p *model.Profile) error {
	return t.st.updateProfile(p)
}

func (t *txStore) CreateEvent(_ context.Context, e *model.Event) error {
	return t.st.createEvent(e)
}

func (t *txStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	return t.st.getEvent(id)
}

// LockEvent needs no extra locking: the whole store is held.
func (t *txStore) LockEvent(_ context.Context, id string) (*model.Event, error) {
	return t.st.getEvent(id)
}

func (t *txStore) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return t.st.listEvents(filter), nil
}

func (t *txStore) UpdateEvent(_ context.Context, e *model.Event) error {
	return t.st.updateEvent(e)
}

func (t *txStore) AppendUpdateLog(_ context.Context, eventID string, entry model.UpdateLogEntry) error {
	return t.st.appendUpdateLog(eventID, entry)
}

func (t *txStore) ListUpdateLogs(_ context.Context, eventID string) ([]model.UpdateLogEntry, error) {
	return t.st.listUpdateLogs(eventID)
}

func (t *txStore) RecordActivity(_ context.Context, a *model.Activity) error {
	t.st.recordActivity(a)
	return nil
}

func (t *txStore) ListActivity(_ context.Context, subjectID string) ([]*model.Activity, error) {
	return t.st.listActivity(subjectID), nil
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store; the parent store owns the data.
func (t *txStore) Close() error {
	return nil
}

func (st *state) snapshot() state {
	return state{
		profiles: maps.Clone(st.profiles),
		events:   maps.Clone(st.events),
		activity: slices.Clone(st.activity),
		nextID:   st.nextID,
	}
}

func (st *state) createProfile(p *model.Profile) error {
	if _, ok := st.profiles[p.ID]; ok {
		return fmt.Errorf("profile %s already exists", p.ID)
	}
	st.profiles[p.ID] = p.Clone()
	return nil
}

func (st *state) getProfile(id string) (*model.Profile, error) {
	p, ok := st.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
	}
	return p.Clone(), nil
}

func (st *state) getProfiles(ids []string) []*model.Profile {
	out := make([]*model.Profile, 0, len(ids))
	for _, id := range model.DedupeProfiles(ids) {
		if p, ok := st.profiles[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (st *state) listProfiles(filter model.ProfileFilter) []*model.Profile {
	out := make([]*model.Profile, 0, len(st.profiles))
	for _, p := range st.profiles {
		if !filter.IncludeInactive && !p.IsActive {
			continue
		}
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, p.ID) {
			continue
		}
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b *model.Profile) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (st *state) updateProfile(p *model.Profile) error {
	if _, ok := st.profiles[p.ID]; !ok {
		return fmt.Errorf("profile %s: %w", p.ID, model.ErrNotFound)
	}
	st.profiles[p.ID] = p.Clone()
	return nil
}

func (st *state) createEvent(e *model.Event) error {
	if _, ok := st.events[e.ID]; ok {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	st.events[e.ID] = e.Clone()
	return nil
}

func (st *state) getEvent(id string) (*model.Event, error) {
	e, ok := st.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, model.ErrNotFound)
	}
	return e.Clone(), nil
}

func (st *state) listEvents(filter model.EventFilter) []*model.Event {
	out := make([]*model.Event, 0, len(st.events))
	for _, e := range st.events {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	slices.SortFunc(out, compareEvents)
	return out
}

// compareEvents orders by start, then created_at, then id.
func compareEvents(a, b *model.Event) int {
	return cmp.Or(
		a.Start.Compare(b.Start),
		a.CreatedAt.Compare(b.CreatedAt),
		cmp.Compare(a.ID, b.ID),
	)
}

func (st *state) updateEvent(e *model.Event) error {
	cur, ok := st.events[e.ID]
	if !ok {
		return fmt.Errorf("event %s: %w", e.ID, model.ErrNotFound)
	}
	next := cur.Clone()
	next.Apply(e.Snapshot())
	next.Status = e.Status
	next.UpdatedAt = e.UpdatedAt
	st.events[e.ID] = next
	return nil
}

func (st *state) appendUpdateLog(eventID string, entry model.UpdateLogEntry) error {
	cur, ok := st.events[eventID]
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, model.ErrNotFound)
	}
	next := cur.Clone()
	next.UpdateLogs = append(next.UpdateLogs, entry.Clone())
	st.events[eventID] = next
	return nil
}

func (st *state) listUpdateLogs(eventID string) ([]model.UpdateLogEntry, error) {
	e, err := st.getEvent(eventID)
	if err != nil {
		return nil, err
	}
	return e.UpdateLogs, nil
}

func (st *state) recordActivity(a *model.Activity) {
	st.nextID++
	a.ID = st.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	c := *a
	c.Payload = slices.Clone(a.Payload)
	st.activity = append(st.activity, &c)
}

func (st *state) listActivity(subjectID string) []*model.Activity {
	var out []*model.Activity
	for _, a := range st.activity {
		if subjectID != "" && a.SubjectID != subjectID {
			continue
		}
		c := *a
		c.Payload = slices.Clone(a.Payload)
		out = append(out, &c)
	}
	return out
}
