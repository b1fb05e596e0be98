package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/export"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// handleCreateEvent handles POST /v1/events.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in createEventInput
	if err := readJSON(r, &in); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if in.CreatedBy == "" {
		in.CreatedBy = r.Header.Get("X-Profile-ID")
	}

	e, err := s.createEvent(r.Context(), in)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleListEvents handles GET /v1/events. ?profile= narrows to one
// profile's events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	filter.ProfileID = r.URL.Query().Get("profile")
	s.serveEventList(w, r, filter)
}

// parseEventFilter reads the optional ?from= and ?to= RFC 3339 bounds.
func parseEventFilter(r *http.Request) (model.EventFilter, error) {
	var filter model.EventFilter
	q := r.URL.Query()
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		v := q.Get(bound.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, inputError("invalid " + bound.name + ": expected RFC 3339")
		}
		*bound.dst = &t
	}
	return filter, nil
}

func (s *Server) serveEventList(w http.ResponseWriter, r *http.Request, filter model.EventFilter) {
	evts, err := s.listEvents(r.Context(), filter)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	views, err := s.viewsFor(r, evts)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": views,
		"total":  len(views),
	})
}

// viewsFor applies the ?tz= projection and ?expand=profiles population.
func (s *Server) viewsFor(r *http.Request, evts []*model.Event) ([]*eventView, error) {
	q := r.URL.Query()
	views, err := newEventViews(evts, q.Get("tz"))
	if err != nil {
		return nil, err
	}
	if wantsExpand(q.Get("expand"), "profiles") {
		if err := s.expandProfiles(r.Context(), views); err != nil {
			return nil, err
		}
	}
	return views, nil
}

func wantsExpand(expand, name string) bool {
	for part := range strings.SplitSeq(expand, ",") {
		if strings.TrimSpace(part) == name {
			return true
		}
	}
	return false
}

// handleGetEvent handles GET /v1/events/{id}.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.getEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	views, err := s.viewsFor(r, []*model.Event{e})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views[0])
}

// handleUpdateEvent handles PATCH and PUT /v1/events/{id}. The acting
// profile comes from updated_by, falling back to X-Profile-ID.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in updateEventInput
	if err := readJSON(r, &in); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if in.UpdatedBy == "" {
		in.UpdatedBy = r.Header.Get("X-Profile-ID")
	}

	e, entry, err := s.updateEvent(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	views, err := s.viewsFor(r, []*model.Event{e})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event": views[0],
		"entry": newLogViews([]model.UpdateLogEntry{entry})[0],
	})
}

// handleListEventLogs handles GET /v1/events/{id}/logs.
func (s *Server) handleListEventLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.listEventLogs(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": newLogViews(logs)})
}

// handleListActivity handles GET /v1/events/{id}/activity.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetEvent(r.Context(), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	activity, err := s.store.ListActivity(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if activity == nil {
		activity = []*model.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

// handleExportEvents handles GET /v1/events/export.xlsx. Times are written
// in ?tz=, else the profile's zone when ?profile= is given, else the
// default zone.
func (s *Server) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{ProfileID: q.Get("profile")}
	zone := q.Get("tz")
	if zone == "" {
		zone = timezone.Default
		if filter.ProfileID != "" {
			p, err := s.store.GetProfile(r.Context(), filter.ProfileID)
			if err != nil {
				s.writeErr(w, r, err)
				return
			}
			zone = p.Timezone
		}
	}
	if _, err := timezone.Load(zone); err != nil {
		s.writeErr(w, r, err)
		return
	}

	evts, err := s.listEvents(r.Context(), filter)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	names, err := s.profileNames(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="events.xlsx"`)
	if err := export.WriteXLSX(w, evts, names, zone); err != nil {
		s.logger.Warn("failed to write spreadsheet", "error", err)
	}
}

// profileNames maps every profile id, active or not, to its name.
func (s *Server) profileNames(ctx context.Context) (map[string]string, error) {
	profiles, err := s.store.ListProfiles(ctx, model.ProfileFilter{IncludeInactive: true})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.Name
	}
	return names, nil
}
