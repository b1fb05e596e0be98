package server

import (
	"net/http"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/export"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// calendarDay is one grid cell with the events overlapping that local day.
type calendarDay struct {
	Date    string         `json:"date"`
	InMonth bool           `json:"in_month"`
	IsToday bool           `json:"is_today"`
	Events  []calendarItem `json:"events"`
}

type calendarItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"` // local, time only
	End   string `json:"end"`
}

// handleCalendar handles GET /v1/profiles/{id}/calendar?month=2006-01. The
// grid is laid out in the profile's zone; the month defaults to the current
// one there.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	loc, err := timezone.Load(p.Timezone)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	now := s.clock.Now()
	anchor := now
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.ParseInLocation("2006-01", m, loc)
		if err != nil {
			s.writeErr(w, r, inputError("invalid month: expected YYYY-MM"))
			return
		}
		anchor = t
	}

	grid, err := timezone.MonthGrid(anchor, p.Timezone, now)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	cells := grid.Days()
	from := cells[0].Date
	to := cells[len(cells)-1].Date.AddDate(0, 0, 1)

	evts, err := s.listEvents(r.Context(), model.EventFilter{ProfileID: p.ID, From: &from, To: &to})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	days := make([]calendarDay, len(cells))
	for i, c := range cells {
		dayEnd := c.Date.AddDate(0, 0, 1)
		day := calendarDay{
			Date:    c.Date.Format(time.DateOnly),
			InMonth: c.InMonth,
			IsToday: c.IsToday,
			Events:  []calendarItem{},
		}
		for _, e := range evts {
			if !e.Start.Before(dayEnd) || !e.End.After(c.Date) {
				continue
			}
			day.Events = append(day.Events, calendarItem{
				ID:    e.ID,
				Title: e.Title,
				Start: e.Start.In(loc).Format("3:04 PM"),
				End:   e.End.In(loc).Format("3:04 PM"),
			})
		}
		days[i] = day
	}

	year, month := grid.Month()
	writeJSON(w, http.StatusOK, map[string]any{
		"profile_id": p.ID,
		"timezone":   p.Timezone,
		"year":       year,
		"month":      int(month),
		"days":       days,
	})
}

// handleCalendarFeed handles GET /v1/profiles/{id}/calendar.ics.
func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	evts, err := s.listEvents(r.Context(), model.EventFilter{ProfileID: p.ID})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	names, err := s.profileNames(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := export.WriteICS(w, p.Name, evts, names, s.clock.Now()); err != nil {
		s.logger.Warn("failed to write calendar feed", "profile_id", p.ID, "error", err)
	}
}
