package client

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/alfredjeanlab/rendezvous/internal/clock"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/server"
	"github.com/alfredjeanlab/rendezvous/internal/store/memory"
)

var serverStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newServer() *server.Server {
	return server.New(memory.New(), nil, server.WithClock(clock.NewStepping(serverStart, time.Second)))
}

// liveHTTP returns an HTTPClient talking to a real in-memory server.
func liveHTTP(t *testing.T) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(newServer().NewHTTPHandler(nil))
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL)
}

// liveGRPC returns a GRPCClient talking to a real in-memory server over
// an in-process listener.
func liveGRPC(t *testing.T) *GRPCClient {
	t.Helper()
	srv := server.NewGRPCServer(newServer())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

// transports runs fn once per transport against a fresh server.
func transports(t *testing.T, fn func(t *testing.T, c Client)) {
	t.Run("http", func(t *testing.T) { fn(t, liveHTTP(t)) })
	t.Run("grpc", func(t *testing.T) { fn(t, liveGRPC(t)) })
}

func TestClient_EventLifecycle(t *testing.T) {
	transports(t, func(t *testing.T, c Client) {
		ctx := context.Background()

		alice, err := c.CreateProfile(ctx, &CreateProfileRequest{Name: "Alice"})
		require.NoError(t, err)
		assert.Equal(t, "America/New_York", alice.Timezone)
		bob, err := c.CreateProfile(ctx, &CreateProfileRequest{Name: "Bob", Timezone: "Asia/Tokyo"})
		require.NoError(t, err)

		e, err := c.CreateEvent(ctx, &CreateEventRequest{
			Title:     "Standup",
			Profiles:  []string{alice.ID},
			Timezone:  "UTC",
			Start:     ptr(utc("2024-03-10T07:00:00Z")),
			End:       ptr(utc("2024-03-10T07:30:00Z")),
			CreatedBy: alice.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPersisted, e.Status)

		logs, err := c.ListEventLogs(ctx, e.ID)
		require.NoError(t, err)
		assert.Empty(t, logs)

		resp, err := c.UpdateEvent(ctx, e.ID, &UpdateEventRequest{
			Title:     model.Some("Standup v2"),
			Profiles:  model.Some([]string{alice.ID, bob.ID}),
			UpdatedBy: bob.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "Standup v2", resp.Event.Title)
		assert.Equal(t, "Standup", resp.Entry.Previous.Title)
		assert.Equal(t, "Standup v2", resp.Entry.Intended.Title)
		assert.Equal(t, []string{`Title changed from "Standup" to "Standup v2"`, "Profiles assigned updated"}, resp.Entry.Changes)

		got, err := c.GetEvent(ctx, e.ID, "Asia/Tokyo")
		require.NoError(t, err)
		require.NotNil(t, got.Local)
		assert.Equal(t, "2024-03-10T16:00", got.Local.StartEditable)
		assert.Equal(t, "2024-03-10T16:30", got.Local.EndEditable)

		logs, err = c.ListEventLogs(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, bob.ID, logs[0].UpdatedBy)

		list, err := c.ListEvents(ctx, &ListEventsRequest{ProfileID: bob.ID})
		require.NoError(t, err)
		require.Equal(t, 1, list.Total)
		assert.Equal(t, e.ID, list.Events[0].ID)
	})
}

func TestClient_ClearDescription(t *testing.T) {
	transports(t, func(t *testing.T, c Client) {
		ctx := context.Background()
		p, err := c.CreateProfile(ctx, &CreateProfileRequest{Name: "P1", Timezone: "UTC"})
		require.NoError(t, err)
		e, err := c.CreateEvent(ctx, &CreateEventRequest{
			Title:       "Review",
			Description: "bring notes",
			Profiles:    []string{p.ID},
			StartLocal:  "2024-03-11T10:00",
			EndLocal:    "2024-03-11T11:00",
			Timezone:    "UTC",
			CreatedBy:   p.ID,
		})
		require.NoError(t, err)

		resp, err := c.UpdateEvent(ctx, e.ID, &UpdateEventRequest{
			Description: model.Clear[string](),
			UpdatedBy:   p.ID,
		})
		require.NoError(t, err)
		assert.Empty(t, resp.Event.Description)
		assert.Equal(t, []string{"Description updated"}, resp.Entry.Changes)

		_, err = c.UpdateEvent(ctx, e.ID, &UpdateEventRequest{
			Title:     model.Clear[string](),
			UpdatedBy: p.ID,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestClient_ListEventsOrderedByStart(t *testing.T) {
	transports(t, func(t *testing.T, c Client) {
		ctx := context.Background()
		p, err := c.CreateProfile(ctx, &CreateProfileRequest{Name: "P1", Timezone: "UTC"})
		require.NoError(t, err)
		for _, ev := range []struct{ title, start string }{
			{"late", "2024-03-12T15:00:00Z"},
			{"early", "2024-03-12T08:00:00Z"},
			{"middle", "2024-03-12T11:00:00Z"},
		} {
			start := utc(ev.start)
			_, err := c.CreateEvent(ctx, &CreateEventRequest{
				Title:     ev.title,
				Profiles:  []string{p.ID},
				Start:     &start,
				End:       ptr(start.Add(time.Hour)),
				CreatedBy: p.ID,
			})
			require.NoError(t, err)
		}

		list, err := c.ListEvents(ctx, &ListEventsRequest{})
		require.NoError(t, err)
		var titles []string
		for _, e := range list.Events {
			titles = append(titles, e.Title)
		}
		assert.Equal(t, []string{"early", "middle", "late"}, titles)
	})
}

func TestClient_ErrorKinds(t *testing.T) {
	transports(t, func(t *testing.T, c Client) {
		ctx := context.Background()
		p, err := c.CreateProfile(ctx, &CreateProfileRequest{Name: "P1", Timezone: "UTC"})
		require.NoError(t, err)

		_, err = c.CreateEvent(ctx, &CreateEventRequest{
			Title:     "Backwards",
			Profiles:  []string{p.ID},
			Start:     ptr(utc("2024-03-10T08:00:00Z")),
			End:       ptr(utc("2024-03-10T07:00:00Z")),
			CreatedBy: p.ID,
		})
		assert.ErrorIs(t, err, model.ErrInvalidEventWindow)

		_, err = c.CreateEvent(ctx, &CreateEventRequest{
			Title:     "Nobody",
			Profiles:  []string{},
			Start:     ptr(utc("2024-03-10T07:00:00Z")),
			End:       ptr(utc("2024-03-10T08:00:00Z")),
			CreatedBy: p.ID,
		})
		assert.ErrorIs(t, err, model.ErrEmptyProfileSet)

		_, err = c.CreateEvent(ctx, &CreateEventRequest{
			Title:     "Ghost",
			Profiles:  []string{"pf-missing"},
			Start:     ptr(utc("2024-03-10T07:00:00Z")),
			End:       ptr(utc("2024-03-10T08:00:00Z")),
			CreatedBy: p.ID,
		})
		assert.ErrorIs(t, err, model.ErrUnknownProfile)

		_, err = c.CreateProfile(ctx, &CreateProfileRequest{Name: "Mars", Timezone: "Mars/Olympus"})
		assert.ErrorIs(t, err, model.ErrInvalidTimezone)

		_, err = c.GetEvent(ctx, "ev-missing", "")
		assert.True(t, IsNotFound(err), "got %v", err)

		_, err = c.UpdateEvent(ctx, "ev-missing", &UpdateEventRequest{UpdatedBy: p.ID})
		assert.True(t, IsNotFound(err), "got %v", err)
	})
}

func TestClient_Profiles(t *testing.T) {
	transports(t, func(t *testing.T, c Client) {
		ctx := context.Background()
		p, err := c.CreateProfile(ctx, &CreateProfileRequest{Name: "P1"})
		require.NoError(t, err)

		p, err = c.UpdateProfile(ctx, p.ID, &UpdateProfileRequest{
			Timezone: model.Some("Europe/Paris"),
			IsActive: model.Some(false),
		})
		require.NoError(t, err)
		assert.Equal(t, "Europe/Paris", p.Timezone)
		assert.False(t, p.IsActive)

		active, err := c.ListProfiles(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, active)

		all, err := c.ListProfiles(ctx, true)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, p.ID, all[0].ID)
	})
}

func TestClient_Health(t *testing.T) {
	transports(t, func(t *testing.T, c Client) {
		status, err := c.Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", status)
	})
}
