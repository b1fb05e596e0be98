package sync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/emersion/go-webdav"

	"github.com/alfredjeanlab/rendezvous/internal/export"
)

// CalendarName is the X-WR-CALNAME of the published calendar.
const CalendarName = "rendezvous"

// basicAuthTransport adds credentials and a user agent to every request.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	req.Header.Set("User-Agent", "rendezvous-sync/1")
	return t.transport.RoundTrip(req)
}

// WebDAVDestination publishes every event as one iCalendar file on a WebDAV
// share, so calendar apps can subscribe to it.
type WebDAVDestination struct {
	client *webdav.Client
	path   string
}

// NewWebDAVDestination creates a destination writing to path under
// endpoint. Empty username disables authentication.
func NewWebDAVDestination(endpoint, username, password, path string) (*WebDAVDestination, error) {
	httpClient := &http.Client{Transport: &basicAuthTransport{
		username:  username,
		password:  password,
		transport: http.DefaultTransport,
	}}
	client, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}
	return &WebDAVDestination{client: client, path: path}, nil
}

func (d *WebDAVDestination) Name() string { return "webdav" }

// Write uploads the calendar. The upload completes on Close, so its error
// is the one that matters.
func (d *WebDAVDestination) Write(ctx context.Context, snap *Snapshot) error {
	w, err := d.client.Create(ctx, d.path)
	if err != nil {
		return fmt.Errorf("webdav create %s: %w", d.path, err)
	}
	if err := export.WriteICS(w, CalendarName, snap.Events, snap.ProfileNames(), snap.Taken); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("webdav put %s: %w", d.path, err)
	}
	return nil
}
