package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/events"
	"github.com/alfredjeanlab/rendezvous/internal/idgen"
	"github.com/alfredjeanlab/rendezvous/internal/ledger"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// createEventInput holds transport-agnostic parameters for creating an
// event. Start and End may instead be given as zone-local editable strings
// in the event's timezone.
type createEventInput struct {
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

// updateEventInput is a tri-state patch of the auditable fields. Only
// Description may be cleared.
type updateEventInput struct {
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

// createEvent validates and persists a new event with an empty ledger.
// Nothing is written when any check fails.
func (s *Server) createEvent(ctx context.Context, in createEventInput) (*model.Event, error) {
	e, err := s.buildEvent(ctx, in)
	if err != nil {
		s.metrics.IncrementMutationFailure("create", model.ErrorCode(err))
		return nil, err
	}

	id, err := idgen.Event.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event id: %w", err)
	}
	e.ID = id

	if err := s.store.CreateEvent(ctx, e); err != nil {
		s.metrics.IncrementMutationFailure("create", "")
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.metrics.IncrementEventsCreated()

	s.recordAndPublish(ctx, events.TopicEventCreated, e.ID, e.CreatedBy, events.EventCreated{Event: e})
	return e, nil
}

func (s *Server) buildEvent(ctx context.Context, in createEventInput) (*model.Event, error) {
	creator := strings.TrimSpace(in.CreatedBy)

	// The event zone defaults to the creator's own zone.
	zone := strings.TrimSpace(in.Timezone)
	if zone == "" {
		zone = timezone.Default
		if creator != "" {
			if p, err := s.store.GetProfile(ctx, creator); err == nil {
				zone = p.Timezone
			} else if !errors.Is(err, model.ErrNotFound) {
				return nil, fmt.Errorf("failed to load creator: %w", err)
			}
		}
	}

	var ve model.ValidationError
	if !timezone.IsSupported(zone) && (strings.TrimSpace(in.StartLocal) != "" || strings.TrimSpace(in.EndLocal) != "") {
		// Local bounds cannot be read without a zone, so the window is unknown.
		ve.Add("timezone", fmt.Sprintf("unsupported zone %q", zone), model.ErrInvalidTimezone)
		return nil, &ve
	}
	start := resolveInstant(&ve, "start", in.Start, in.StartLocal, zone)
	end := resolveInstant(&ve, "end", in.End, in.EndLocal, zone)

	now := s.clock.Now()
	e := &model.Event{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Profiles:    model.DedupeProfiles(in.Profiles),
		Timezone:    zone,
		Start:       start,
		End:         end,
		CreatedBy:   creator,
		Status:      model.StatusPersisted,
		CreatedAt:   now,
		UpdatedAt:   now,
		UpdateLogs:  []model.UpdateLogEntry{},
	}

	if ve.HasErrors() {
		// Window errors would only repeat the parse failures.
		return nil, &ve
	}
	if err := mergeValidation(&ve, model.ValidateEvent(e)); err != nil {
		return nil, err
	}

	missing, err := requireProfiles(ctx, s.store, "profiles", e.Profiles...)
	if err != nil {
		return nil, err
	}
	ve.Errors = append(ve.Errors, missing.Errors...)
	missing, err = requireProfiles(ctx, s.store, "created_by", creator)
	if err != nil {
		return nil, err
	}
	ve.Errors = append(ve.Errors, missing.Errors...)

	if err := ve.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// updateEvent applies a partial update on behalf of actor. Every call that
// passes validation appends exactly one ledger entry, including calls that
// change nothing. A failed call appends nothing.
func (s *Server) updateEvent(ctx context.Context, id string, in updateEventInput) (*model.Event, model.UpdateLogEntry, error) {
	var (
		updated *model.Event
		entry   model.UpdateLogEntry
	)

	if err := ctx.Err(); err != nil {
		return nil, entry, err
	}

	waitStart := time.Now()
	unlock := s.locks.lock(id)
	defer unlock()
	s.metrics.ObserveLockWait(waitStart)

	// Past this point the caller going away must not leave the ledger and the
	// event out of step, so the transaction runs to completion.
	txCtx := context.WithoutCancel(ctx)
	err := s.store.RunInTransaction(txCtx, func(tx store.Store) error {
		current, err := tx.LockEvent(txCtx, id)
		if err != nil {
			return err
		}

		actor := strings.TrimSpace(in.UpdatedBy)
		var ve model.ValidationError
		if actor == "" {
			ve.Add("updated_by", "is required", model.ErrUnknownProfile)
			return &ve
		}
		missing, err := requireProfiles(txCtx, tx, "updated_by", actor)
		if err != nil {
			return err
		}
		if err := missing.Err(); err != nil {
			return err
		}

		previous := ledger.Snapshot(current)
		intended := overlay(&ve, previous, in)
		if ve.HasErrors() {
			return &ve
		}
		if err := mergeValidation(&ve, model.ValidateSnapshot(intended)); err != nil {
			return err
		}
		missing, err = requireProfiles(txCtx, tx, "profiles", intended.Profiles...)
		if err != nil {
			return err
		}
		if err := missing.Err(); err != nil {
			return err
		}

		now := s.clock.Now()
		entry = ledger.Append(current, actor, previous, intended, now)
		if err := tx.AppendUpdateLog(txCtx, id, entry); err != nil {
			return fmt.Errorf("failed to append update log: %w", err)
		}

		current.Apply(intended)
		current.UpdatedAt = now
		if err := tx.UpdateEvent(txCtx, current); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		updated = current
		return nil
	})
	if err != nil {
		s.metrics.IncrementMutationFailure("update", model.ErrorCode(err))
		return nil, model.UpdateLogEntry{}, err
	}
	s.metrics.IncrementLedgerAppends()

	s.recordAndPublish(ctx, events.TopicEventUpdated, updated.ID, entry.UpdatedBy, events.EventUpdated{
		Event:   updated,
		Entry:   entry,
		Changes: ledger.Changes(entry),
	})
	return updated, entry, nil
}

// overlay builds the intended snapshot: present fields replace current
// values, absent fields keep them. Attempts to clear a field other than
// description are recorded on ve.
func overlay(ve *model.ValidationError, current model.Snapshot, in updateEventInput) model.Snapshot {
	next := current.Clone()

	if in.Title.Set {
		if in.Title.Null {
			ve.Add("title", "cannot be cleared", model.ErrInvalidInput)
		} else {
			next.Title = strings.TrimSpace(in.Title.Value)
		}
	}
	if in.Description.Set {
		next.Description = in.Description.Value
	}
	if in.Profiles.Set {
		if in.Profiles.Null {
			ve.Add("profiles", "cannot be cleared", model.ErrEmptyProfileSet)
		} else {
			next.Profiles = model.DedupeProfiles(in.Profiles.Value)
		}
	}
	if in.Timezone.Set {
		if in.Timezone.Null {
			ve.Add("timezone", "cannot be cleared", model.ErrInvalidTimezone)
		} else {
			next.Timezone = strings.TrimSpace(in.Timezone.Value)
		}
	}

	overlayInstant(ve, "start", &next.Start, in.Start, in.StartLocal, next.Timezone)
	overlayInstant(ve, "end", &next.End, in.End, in.EndLocal, next.Timezone)
	return next
}

// overlayInstant applies one of the instant or local forms of a window
// bound. Local strings are read in the intended timezone.
func overlayInstant(ve *model.ValidationError, field string, dst *time.Time, instant model.Optional[time.Time], local model.Optional[string], zone string) {
	switch {
	case instant.Set && local.Set:
		ve.Add(field, fmt.Sprintf("give either %s or %s_local, not both", field, field), model.ErrInvalidInput)
	case instant.Null || local.Null:
		ve.Add(field, "cannot be cleared", model.ErrInvalidEventWindow)
	case instant.Set:
		*dst = instant.Value.UTC()
	case local.Set:
		if !timezone.IsSupported(zone) {
			// Reported by snapshot validation.
			return
		}
		t, err := timezone.FromLocalEditable(local.Value, zone)
		if err != nil {
			ve.Add(field+"_local", err.Error(), model.ErrInvalidDateTime)
			return
		}
		*dst = t
	}
}

// resolveInstant picks the instant or local form of a create-time window
// bound. A missing bound is left zero for validation to report.
func resolveInstant(ve *model.ValidationError, field string, instant *time.Time, local, zone string) time.Time {
	local = strings.TrimSpace(local)
	switch {
	case instant != nil && local != "":
		ve.Add(field, fmt.Sprintf("give either %s or %s_local, not both", field, field), model.ErrInvalidInput)
	case instant != nil:
		return instant.UTC()
	case local != "":
		t, err := timezone.FromLocalEditable(local, zone)
		if err != nil {
			ve.Add(field+"_local", err.Error(), model.ErrInvalidDateTime)
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}

// mergeValidation folds the field errors of err into ve and returns ve when
// it then holds any. Errors that are not validation errors pass through.
func mergeValidation(ve *model.ValidationError, err error) error {
	if err != nil {
		var other *model.ValidationError
		if !errors.As(err, &other) {
			return err
		}
		ve.Errors = append(ve.Errors, other.Errors...)
	}
	return ve.Err()
}

func (s *Server) getEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// listEventLogs returns the ledger of an event, oldest first.
func (s *Server) listEventLogs(ctx context.Context, id string) ([]model.UpdateLogEntry, error) {
	logs, err := s.store.ListUpdateLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.UpdateLogEntry{}
	}
	return logs, nil
}

// listEvents returns events ordered by start ascending. A non-empty
// profileID restricts the result to that profile's events and must resolve.
func (s *Server) listEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	if filter.ProfileID != "" {
		if _, err := s.store.GetProfile(ctx, filter.ProfileID); err != nil {
			return nil, err
		}
	}
	evts, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	return evts, nil
}
