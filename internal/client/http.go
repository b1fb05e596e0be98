package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/rendezvous/internal/model"
)

// HTTPClient talks to the /v1 JSON API.
type HTTPClient struct {
	base    string
	profile string
	hc      *http.Client
}

// NewHTTPClient targets baseURL, e.g. "http://localhost:8080".
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{base: strings.TrimRight(baseURL, "/"), hc: &http.Client{}}
}

// WithProfile sends id as X-Profile-ID, the acting profile the server falls
// back to when a body names none.
func (c *HTTPClient) WithProfile(id string) *HTTPClient {
	c.profile = id
	return c
}

func (c *HTTPClient) Close() error { return nil }

// params collects query parameters, skipping empty values.
type params url.Values

func (p params) set(key, value string) params {
	if value != "" {
		url.Values(p).Set(key, value)
	}
	return p
}

func (p params) setTime(key string, t *time.Time) params {
	if t != nil {
		p.set(key, t.UTC().Format(time.RFC3339))
	}
	return p
}

func (p params) on(path string) string {
	if len(p) == 0 {
		return path
	}
	return path + "?" + url.Values(p).Encode()
}

func eventPath(id string) string   { return "/v1/events/" + url.PathEscape(id) }
func profilePath(id string) string { return "/v1/profiles/" + url.PathEscape(id) }

// call sends body as JSON and decodes the reply into a new T.
func call[T any](ctx context.Context, c *HTTPClient, method, path string, body any) (*T, error) {
	out := new(T)
	if err := c.roundTrip(ctx, method, path, body, func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateProfile(ctx context.Context, req *CreateProfileRequest) (*model.Profile, error) {
	return call[model.Profile](ctx, c, http.MethodPost, "/v1/profiles", req)
}

func (c *HTTPClient) ListProfiles(ctx context.Context, includeInactive bool) ([]*model.Profile, error) {
	p := params{}
	if includeInactive {
		p.set("all", "true")
	}
	resp, err := call[struct {
		Profiles []*model.Profile `json:"profiles"`
	}](ctx, c, http.MethodGet, p.on("/v1/profiles"), nil)
	if err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*model.Profile, error) {
	return call[model.Profile](ctx, c, http.MethodPatch, profilePath(id), req)
}

func (c *HTTPClient) CreateEvent(ctx context.Context, req *CreateEventRequest) (*model.Event, error) {
	return call[model.Event](ctx, c, http.MethodPost, "/v1/events", req)
}

// GetEvent fetches one event projected into tz; empty tz lets the server
// choose.
func (c *HTTPClient) GetEvent(ctx context.Context, id, tz string) (*EventView, error) {
	return call[EventView](ctx, c, http.MethodGet, params{}.set("tz", tz).on(eventPath(id)), nil)
}

func (c *HTTPClient) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	p := params{}.
		set("profile", req.ProfileID).
		setTime("from", req.From).
		setTime("to", req.To).
		set("tz", req.TZ)
	return call[ListEventsResponse](ctx, c, http.MethodGet, p.on("/v1/events"), nil)
}

func (c *HTTPClient) UpdateEvent(ctx context.Context, id string, req *UpdateEventRequest) (*UpdateEventResponse, error) {
	return call[UpdateEventResponse](ctx, c, http.MethodPatch, eventPath(id), req)
}

func (c *HTTPClient) ListEventLogs(ctx context.Context, id string) ([]LogEntry, error) {
	resp, err := call[struct {
		Logs []LogEntry `json:"logs"`
	}](ctx, c, http.MethodGet, eventPath(id)+"/logs", nil)
	if err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	resp, err := call[struct {
		Status string `json:"status"`
	}](ctx, c, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// ExportEvents writes the spreadsheet export to w. Empty profileID exports
// every event; empty tz lets the server pick the zone.
func (c *HTTPClient) ExportEvents(ctx context.Context, profileID, tz string, w io.Writer) error {
	p := params{}.set("profile", profileID).set("tz", tz)
	return c.download(ctx, p.on("/v1/events/export.xlsx"), w)
}

// CalendarFeed writes a profile's iCalendar feed to w.
func (c *HTTPClient) CalendarFeed(ctx context.Context, profileID string, w io.Writer) error {
	return c.download(ctx, profilePath(profileID)+"/calendar.ics", w)
}

func (c *HTTPClient) download(ctx context.Context, path string, w io.Writer) error {
	return c.roundTrip(ctx, http.MethodGet, path, nil, func(r io.Reader) error {
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		return nil
	})
}

// roundTrip performs one request and hands a successful body to read.
// Status codes of 400 and above become *APIError.
func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, body any, read func(io.Reader) error) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.profile != "" {
		req.Header.Set("X-Profile-ID", c.profile)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return decodeAPIError(resp.StatusCode, raw)
	}
	return read(resp.Body)
}

func decodeAPIError(status int, body []byte) error {
	var wire struct {
		Error  string       `json:"error"`
		Code   string       `json:"code"`
		Fields []FieldError `json:"fields"`
	}
	if err := json.Unmarshal(body, &wire); err != nil || wire.Error == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: status, Code: wire.Code, Message: wire.Error, Fields: wire.Fields}
}
