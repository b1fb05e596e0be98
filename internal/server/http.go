package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/timezone"
)

// NewHTTPHandler returns an http.Handler with all routes registered. An
// empty corsOrigins list disables CORS headers.
func (s *Server) NewHTTPHandler(corsOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/timezones", s.handleTimezones)

	mux.HandleFunc("POST /v1/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /v1/profiles", s.handleListProfiles)
	mux.HandleFunc("GET /v1/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PATCH /v1/profiles/{id}", s.handleUpdateProfile)
	mux.HandleFunc("PUT /v1/profiles/{id}/timezone", s.handleUpdateProfileTimezone)
	mux.HandleFunc("GET /v1/profiles/{id}/events", s.handleListProfileEvents)
	mux.HandleFunc("GET /v1/profiles/{id}/calendar", s.handleCalendar)
	mux.HandleFunc("GET /v1/profiles/{id}/calendar.ics", s.handleCalendarFeed)

	mux.HandleFunc("POST /v1/events", s.handleCreateEvent)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/export.xlsx", s.handleExportEvents)
	mux.HandleFunc("GET /v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("PATCH /v1/events/{id}", s.handleUpdateEvent)
	mux.HandleFunc("PUT /v1/events/{id}", s.handleUpdateEvent)
	mux.HandleFunc("GET /v1/events/{id}/logs", s.handleListEventLogs)
	mux.HandleFunc("GET /v1/events/{id}/activity", s.handleListActivity)

	mux.HandleFunc("GET /v1/stream", s.handleEventStream)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var h http.Handler = s.instrument(mux)
	h = s.withProfileLoader(h)
	if len(corsOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowCredentials: true,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Request-ID"},
		}).Handler(h)
	}
	return s.withRequestID(h)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.clock.Now(),
	})
}

// handleTimezones handles GET /v1/timezones.
func (s *Server) handleTimezones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": timezone.Default,
		"zones":   timezone.Supported(),
	})
}

type requestIDKey struct{}

// withRequestID tags each request with an id, echoes it in X-Request-ID and
// logs the request when it finishes.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

// instrument records metrics by route pattern. It must wrap the mux
// directly so the pattern the mux matched is visible on r afterwards.
func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		mux.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(r.Method, route, rec.status, start)
	})
}

// statusRecorder captures the response status. It forwards Flush so SSE
// keeps working through the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// readJSON reads a JSON request body into v.
func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return inputError("invalid JSON body: " + err.Error())
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string          `json:"error"`
	Code   string          `json:"code,omitempty"`
	Fields []fieldErrorDoc `json:"fields,omitempty"`
}

type fieldErrorDoc struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// writeError writes a JSON error response with an explicit status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeErr maps err to a status: 400 for input and validation kinds, 404
// for not-found, 500 for everything else. Internal details are logged, not
// returned.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ie inputError
	if errors.As(err, &ie) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ie.Error(), Code: model.CodeInvalidInput})
		return
	}

	code := model.ErrorCode(err)
	switch code {
	case "":
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(requestIDKey{}),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	case model.CodeNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: code})
	default:
		body := errorBody{Error: err.Error(), Code: code}
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			for _, fe := range ve.Errors {
				body.Fields = append(body.Fields, fieldErrorDoc{
					Field:   fe.Field,
					Message: fe.Message,
					Code:    model.ErrorCode(fe.Kind),
				})
			}
		}
		writeJSON(w, http.StatusBadRequest, body)
	}
}
