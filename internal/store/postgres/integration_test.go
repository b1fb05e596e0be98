//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
)

// newContainerStore starts a throwaway PostgreSQL and opens a migrated store on it.
func newContainerStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("rendezvous"),
		tcpostgres.WithUsername("rendezvous"),
		tcpostgres.WithPassword("rendezvous"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	s, err := New(dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIntegration_EventLifecycle(t *testing.T) {
	s := newContainerStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, id := range []string{"pf-alice", "pf-bob"} {
		p := &model.Profile{ID: id, Name: id, Timezone: "UTC", IsActive: true, CreatedAt: now, UpdatedAt: now}
		if err := s.CreateProfile(ctx, p); err != nil {
			t.Fatalf("CreateProfile(%s): %v", id, err)
		}
	}

	e := &model.Event{
		ID: "ev-1", Title: "Standup", Profiles: []string{"pf-alice"}, Timezone: "America/New_York",
		Start: standupStart, End: standupEnd, CreatedBy: "pf-alice", Status: model.StatusPersisted,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateEvent(ctx, e); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	// Concurrent appends serialize on the row lock and none are lost.
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunInTransaction(ctx, func(tx store.Store) error {
				cur, err := tx.LockEvent(ctx, "ev-1")
				if err != nil {
					return err
				}
				prev := cur.Snapshot()
				cur.Profiles = append(cur.Profiles, "pf-bob")
				cur.Profiles = model.DedupeProfiles(cur.Profiles)
				if err := tx.AppendUpdateLog(ctx, cur.ID, model.UpdateLogEntry{
					UpdatedBy: "pf-bob", Previous: prev, Intended: cur.Snapshot(), UpdatedAt: now,
				}); err != nil {
					return err
				}
				return tx.UpdateEvent(ctx, cur)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("transaction: %v", err)
		}
	}

	logs, err := s.ListUpdateLogs(ctx, "ev-1")
	if err != nil {
		t.Fatalf("ListUpdateLogs: %v", err)
	}
	if len(logs) != writers {
		t.Fatalf("got %d ledger entries, want %d", len(logs), writers)
	}

	bobs, err := s.ListEvents(ctx, model.EventFilter{ProfileID: "pf-bob"})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(bobs) != 1 || !bobs[0].Start.Equal(standupStart) {
		t.Fatalf("ListEvents(pf-bob) = %+v", bobs)
	}
}

func TestIntegration_WindowConstraint(t *testing.T) {
	s := newContainerStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateProfile(ctx, &model.Profile{ID: "pf-a", Name: "A", Timezone: "UTC", IsActive: true, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	e := &model.Event{
		ID: "ev-bad", Title: "Backwards", Profiles: []string{"pf-a"}, Timezone: "UTC",
		Start: standupEnd, End: standupStart, CreatedBy: "pf-a", Status: model.StatusPersisted,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateEvent(ctx, e); err == nil {
		t.Fatal("expected the window check constraint to reject the row")
	}
	if _, err := s.GetEvent(ctx, "ev-bad"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected model.ErrNotFound, got %v", err)
	}
}
