// Package client provides a transport-agnostic interface for the rendezvous
// service with HTTP/JSON and gRPC implementations, and an explicit
// application-state object built on top of it.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// Client is the interface that all rv commands use to communicate with the
// server. It is implemented by HTTPClient (default) and GRPCClient.
type Client interface {
	// Profiles
	CreateProfile(ctx context.Context, req *CreateProfileRequest) (*model.Profile, error)
	ListProfiles(ctx context.Context, includeInactive bool) ([]*model.Profile, error)
	UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*model.Profile, error)

	// Events
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*model.Event, error)
	GetEvent(ctx context.Context, id, tz string) (*EventView, error)
	ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error)
	UpdateEvent(ctx context.Context, id string, req *UpdateEventRequest) (*UpdateEventResponse, error)
	ListEventLogs(ctx context.Context, id string) ([]LogEntry, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateProfileRequest holds parameters for creating a profile. An empty
// Timezone means the server default.
type CreateProfileRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
}

// UpdateProfileRequest holds optional profile changes. Unset fields are
// left alone.
type UpdateProfileRequest struct {
	Name     model.Optional[string] `json:"name,omitzero"`
	Timezone model.Optional[string] `json:"timezone,omitzero"`
	IsActive model.Optional[bool]   `json:"is_active,omitzero"`
}

// CreateEventRequest holds parameters for creating an event. The window
// is given either as instants or as local editable strings read in
// Timezone.
type CreateEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Profiles    []string   `json:"profiles"`
	Timezone    string     `json:"timezone,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	StartLocal  string     `json:"start_local,omitempty"`
	EndLocal    string     `json:"end_local,omitempty"`
	CreatedBy   string     `json:"created_by"`
}

// UpdateEventRequest is a partial update. Unset fields keep their value;
// only Description may be cleared.
type UpdateEventRequest struct {
	Title       model.Optional[string]    `json:"title,omitzero"`
	Description model.Optional[string]    `json:"description,omitzero"`
	Profiles    model.Optional[[]string]  `json:"profiles,omitzero"`
	Timezone    model.Optional[string]    `json:"timezone,omitzero"`
	Start       model.Optional[time.Time] `json:"start,omitzero"`
	End         model.Optional[time.Time] `json:"end,omitzero"`
	StartLocal  model.Optional[string]    `json:"start_local,omitzero"`
	EndLocal    model.Optional[string]    `json:"end_local,omitzero"`
	UpdatedBy   string                    `json:"updated_by"`
}

// ListEventsRequest holds parameters for listing events. TZ asks the
// server to project each event into that zone.
type ListEventsRequest struct {
	ProfileID string     `json:"profile_id,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	TZ        string     `json:"tz,omitempty"`
}

// ListEventsResponse is the response from ListEvents.
type ListEventsResponse struct {
	Events []*EventView `json:"events"`
	Total  int          `json:"total"`
}

// UpdateEventResponse carries the updated event and the ledger entry the
// update appended.
type UpdateEventResponse struct {
	Event *EventView `json:"event"`
	Entry LogEntry   `json:"entry"`
}

// EventView is an event as served, with an optional local projection.
type EventView struct {
	model.Event
	Local       *LocalTimes      `json:"local,omitempty"`
	ProfileRefs []*model.Profile `json:"profile_refs,omitempty"`
}

// LocalTimes is an event window projected into one zone.
type LocalTimes struct {
	Timezone      string `json:"timezone"`
	Label         string `json:"label"`
	StartEditable string `json:"start_editable"`
	EndEditable   string `json:"end_editable"`
	StartDisplay  string `json:"start_display"`
	EndDisplay    string `json:"end_display"`
}

// LogEntry is a ledger entry with its change summary.
type LogEntry struct {
	model.UpdateLogEntry
	Changes []string `json:"changes"`
}

// APIError is an error reported by the server. It unwraps to the matching
// model error kind, so errors.Is(err, model.ErrNotFound) works on it.
type APIError struct {
	StatusCode int // HTTP status; 0 for gRPC
	Code       string
	Message    string
	Fields     []FieldError
}

// FieldError is one per-field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Unwrap returns the kinds of the error and of every field error.
func (e *APIError) Unwrap() []error {
	var kinds []error
	if k := model.KindForCode(e.Code); k != nil {
		kinds = append(kinds, k)
	}
	for _, f := range e.Fields {
		if k := model.KindForCode(f.Code); k != nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// IsNotFound reports whether err is a not-found error from either transport.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
