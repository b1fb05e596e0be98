// Package store defines the persistence collaborator of the scheduler.
// Implementations report missing rows as model.ErrNotFound.
package store

import (
	"context"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// Store defines the persistence interface for profiles and events.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfiles(ctx context.Context, ids []string) ([]*model.Profile, error) // missing ids are omitted
	ListProfiles(ctx context.Context, filter model.ProfileFilter) ([]*model.Profile, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error

	// Events. Lists are ordered by start ascending, then created_at, then id.
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error // writes the snapshot fields; never touches the ledger

	// LockEvent reads an event and holds it against concurrent writers until
	// the surrounding transaction ends. Outside a transaction it is GetEvent.
	LockEvent(ctx context.Context, id string) (*model.Event, error)

	// Ledger
	AppendUpdateLog(ctx context.Context, eventID string, entry model.UpdateLogEntry) error
	ListUpdateLogs(ctx context.Context, eventID string) ([]model.UpdateLogEntry, error)

	// Activity
	RecordActivity(ctx context.Context, a *model.Activity) error
	ListActivity(ctx context.Context, subjectID string) ([]*model.Activity, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
