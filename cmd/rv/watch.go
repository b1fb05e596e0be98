package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/events"
	"github.com/alfredjeanlab/rendezvous/internal/ui"
)

const sseRetryDelay = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream profile and event changes as they happen",
	GroupID: "views",
	Long: `Stream changes. NATS is used when RENDEZVOUS_NATS_URL or the active
remote names a server; otherwise the HTTP server's SSE stream is read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		forProfile, _ := cmd.Flags().GetString("for")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		handle := func(topic string, data []byte) {
			line, err := describe(topic, data)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", topic, err)
				return
			}
			if jsonOutput {
				fmt.Fprintf(out, "{\"topic\":%q,\"data\":%s}\n", topic, data)
				return
			}
			fmt.Fprintf(out, "%s %s %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), ui.RenderAccent(topic), line)
		}

		natsURL := os.Getenv("RENDEZVOUS_NATS_URL")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL != "" {
			return watchNATS(ctx, natsURL, forProfile, handle)
		}
		return watchSSE(ctx, httpURL, forProfile, handle)
	},
}

// describe renders a one-line summary of a bus message.
func describe(topic string, data []byte) (string, error) {
	switch topic {
	case events.TopicProfileCreated:
		var p events.ProfileCreated
		if err := json.Unmarshal(data, &p); err != nil || p.Profile == nil {
			return "", fmt.Errorf("bad payload")
		}
		return fmt.Sprintf("%s (%s, %s)", p.Profile.Name, p.Profile.ID, p.Profile.Timezone), nil
	case events.TopicProfileUpdated:
		var p events.ProfileUpdated
		if err := json.Unmarshal(data, &p); err != nil || p.Profile == nil {
			return "", fmt.Errorf("bad payload")
		}
		fields := make([]string, 0, len(p.Changes))
		for k := range p.Changes {
			fields = append(fields, k)
		}
		slices.Sort(fields)
		return fmt.Sprintf("%s (%s): %s", p.Profile.Name, p.Profile.ID, strings.Join(fields, ", ")), nil
	case events.TopicEventCreated:
		var p events.EventCreated
		if err := json.Unmarshal(data, &p); err != nil || p.Event == nil {
			return "", fmt.Errorf("bad payload")
		}
		return fmt.Sprintf("%s (%s) %s", p.Event.Title, p.Event.ID, whenIn(p.Event, p.Event.Timezone)), nil
	case events.TopicEventUpdated:
		var p events.EventUpdated
		if err := json.Unmarshal(data, &p); err != nil || p.Event == nil {
			return "", fmt.Errorf("bad payload")
		}
		return fmt.Sprintf("%s (%s) by %s: %s", p.Event.Title, p.Event.ID, p.Entry.UpdatedBy, strings.Join(p.Changes, "; ")), nil
	}
	return "", fmt.Errorf("unknown topic")
}

// watchNATS subscribes to every rendezvous topic until ctx is done. The
// audience header does the per-profile filtering.
func watchNATS(ctx context.Context, natsURL, forProfile string, handle func(string, []byte)) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	subscribe := sub.Subscribe
	if forProfile != "" {
		subscribe = func(topic string) (<-chan events.Message, func(), error) {
			return sub.SubscribeFor(topic, forProfile)
		}
	}
	ch, cancel, err := subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(msg.Topic, msg.Data)
		}
	}
}

// watchSSE reads the server's event stream, reconnecting with
// Last-Event-ID after a dropped connection.
func watchSSE(ctx context.Context, baseURL, forProfile string, handle func(string, []byte)) error {
	target := strings.TrimRight(baseURL, "/") + "/v1/stream"
	if forProfile != "" {
		target += "?" + url.Values{"profile": {forProfile}}.Encode()
	}

	var lastID string
	for {
		err := streamOnce(ctx, target, lastID, func(id, topic string, data []byte) {
			if id != "" {
				lastID = id
			}
			handle(topic, data)
		})
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("stream: %v; retrying in %s", err, sseRetryDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sseRetryDelay):
		}
	}
}

func streamOnce(ctx context.Context, target, lastID string, fn func(id, topic string, data []byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := readSSE(resp.Body, fn); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// readSSE parses id/event/data frames separated by blank lines. Comment
// lines (keepalives) are ignored.
func readSSE(r io.Reader, fn func(id, topic string, data []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var id, topic string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				fn(id, topic, []byte(strings.Join(data, "\n")))
			}
			id, topic, data = "", "", nil
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "id":
				id = value
			case "event":
				topic = value
			case "data":
				data = append(data, value)
			}
		}
	}
	return sc.Err()
}

func init() {
	watchCmd.Flags().String("for", "", "only changes concerning this profile")
}
