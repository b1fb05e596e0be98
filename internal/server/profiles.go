package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/rendezvous/internal/events"
	"github.com/alfredjeanlab/rendezvous/internal/idgen"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// createProfileInput holds transport-agnostic parameters for creating a profile.
type createProfileInput struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
}

// updateProfileInput is a tri-state patch. Absent fields keep their value;
// none of them may be cleared.
type updateProfileInput struct {
	Name     model.Optional[string] `json:"name,omitzero"`
	Timezone model.Optional[string] `json:"timezone,omitzero"`
	IsActive model.Optional[bool]   `json:"is_active,omitzero"`
}

func (s *Server) createProfile(ctx context.Context, in createProfileInput) (*model.Profile, error) {
	now := s.clock.Now()
	p := &model.Profile{
		Name:      strings.TrimSpace(in.Name),
		Timezone:  strings.TrimSpace(in.Timezone),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Timezone == "" {
		p.Timezone = timezone.Default
	}
	if err := model.ValidateProfile(p); err != nil {
		return nil, err
	}

	id, err := idgen.Profile.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate profile id: %w", err)
	}
	p.ID = id

	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.recordAndPublish(ctx, events.TopicProfileCreated, p.ID, p.ID, events.ProfileCreated{Profile: p})
	return p, nil
}

func (s *Server) updateProfile(ctx context.Context, id string, in updateProfileInput) (*model.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	var ve model.ValidationError
	changes := make(map[string]any)

	if in.Name.Set {
		if in.Name.Null {
			ve.Add("name", "cannot be cleared", model.ErrInvalidInput)
		} else {
			p.Name = strings.TrimSpace(in.Name.Value)
			changes["name"] = p.Name
		}
	}
	if in.Timezone.Set {
		if in.Timezone.Null {
			ve.Add("timezone", "cannot be cleared", model.ErrInvalidTimezone)
		} else {
			p.Timezone = strings.TrimSpace(in.Timezone.Value)
			changes["timezone"] = p.Timezone
		}
	}
	if in.IsActive.Set {
		if in.IsActive.Null {
			ve.Add("is_active", "cannot be cleared", model.ErrInvalidInput)
		} else {
			p.IsActive = in.IsActive.Value
			changes["is_active"] = p.IsActive
		}
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	if err := model.ValidateProfile(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.recordAndPublish(ctx, events.TopicProfileUpdated, p.ID, p.ID, events.ProfileUpdated{
		Profile: p,
		Changes: changes,
	})
	return p, nil
}

func (s *Server) listProfiles(ctx context.Context, includeInactive bool) ([]*model.Profile, error) {
	profiles, err := s.store.ListProfiles(ctx, model.ProfileFilter{IncludeInactive: includeInactive})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	if profiles == nil {
		profiles = []*model.Profile{}
	}
	return profiles, nil
}

// requireProfiles checks that every id resolves to a stored profile and
// reports the missing ones against field.
func requireProfiles(ctx context.Context, st store.Store, field string, ids ...string) (*model.ValidationError, error) {
	var ve model.ValidationError
	var lookup []string
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			lookup = append(lookup, id)
		}
	}
	if len(lookup) == 0 {
		return &ve, nil
	}

	found, err := st.GetProfiles(ctx, model.DedupeProfiles(lookup))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profiles: %w", err)
	}
	known := make(map[string]struct{}, len(found))
	for _, p := range found {
		known[p.ID] = struct{}{}
	}
	for _, id := range model.DedupeProfiles(lookup) {
		if _, ok := known[id]; !ok {
			ve.Add(field, fmt.Sprintf("profile %q does not exist", id), model.ErrUnknownProfile)
		}
	}
	return &ve, nil
}
