package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// handleCreateProfile handles POST /v1/profiles.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var in createProfileInput
	if err := readJSON(r, &in); err != nil {
		s.writeErr(w, r, err)
		return
	}

	p, err := s.createProfile(r.Context(), in)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleListProfiles handles GET /v1/profiles. Inactive profiles are
// included with ?all=true.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	profiles, err := s.listProfiles(r.Context(), all)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// handleGetProfile handles GET /v1/profiles/{id}.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProfile handles PATCH /v1/profiles/{id}.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in updateProfileInput
	if err := readJSON(r, &in); err != nil {
		s.writeErr(w, r, err)
		return
	}

	p, err := s.updateProfile(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdateProfileTimezone handles PUT /v1/profiles/{id}/timezone with a
// body of {"timezone": "..."}.
func (s *Server) handleUpdateProfileTimezone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Timezone string `json:"timezone"`
	}
	if err := readJSON(r, &body); err != nil {
		s.writeErr(w, r, err)
		return
	}

	p, err := s.updateProfile(r.Context(), r.PathValue("id"), updateProfileInput{
		Timezone: model.Some(body.Timezone),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleListProfileEvents handles GET /v1/profiles/{id}/events.
func (s *Server) handleListProfileEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	filter.ProfileID = r.PathValue("id")
	s.serveEventList(w, r, filter)
}
