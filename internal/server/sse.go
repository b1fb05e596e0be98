package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// sseReplaySize bounds the messages kept for Last-Event-ID replay.
	sseReplaySize = 1000

	sseKeepaliveInterval = 15 * time.Second
	sseClientBuffer      = 64

	// sseRetry is the reconnect delay suggested to browsers.
	sseRetry = 2 * time.Second
)

// sseMessage is one domain message as sent on /v1/stream.
type sseMessage struct {
	ID       uint64
	Topic    string
	Data     []byte
	Audience []string // profile ids the message concerns
}

// streamFilter selects the messages a stream receives. Zero value means
// everything.
type streamFilter struct {
	topics  []string // NATS-style patterns, any may match
	profile string   // only messages whose audience includes it
}

func parseStreamFilter(q url.Values) streamFilter {
	f := streamFilter{profile: strings.TrimSpace(q.Get("profile"))}
	for t := range strings.SplitSeq(q.Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.topics = append(f.topics, t)
		}
	}
	return f
}

func (f streamFilter) allows(m *sseMessage) bool {
	if f.profile != "" && !slices.Contains(m.Audience, f.profile) {
		return false
	}
	if len(f.topics) == 0 {
		return true
	}
	return slices.ContainsFunc(f.topics, func(p string) bool {
		return matchTopicPattern(p, m.Topic)
	})
}

// matchTopicPattern matches a dot-separated topic the way NATS matches
// subjects: "*" is one segment, a trailing ">" is one or more.
func matchTopicPattern(pattern, topic string) bool {
	for {
		seg, patRest, patMore := strings.Cut(pattern, ".")
		if seg == ">" {
			return topic != ""
		}
		word, topRest, topMore := strings.Cut(topic, ".")
		if seg != "*" && seg != word {
			return false
		}
		if !patMore || !topMore {
			return patMore == topMore
		}
		pattern, topic = patRest, topRest
	}
}

type sseClient struct {
	filter streamFilter
	ch     chan *sseMessage
}

// sseHub fans messages out to connected streams and remembers the most
// recent ones. A single lock orders broadcasts against subscriptions, so a
// reconnecting client sees its backlog and then live messages with no gap
// and no duplicate.
type sseHub struct {
	mu      sync.Mutex
	clients map[*sseClient]struct{}
	lastID  uint64
	recent  []*sseMessage // ascending IDs, at most sseReplaySize
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

func (h *sseHub) broadcast(topic string, payload []byte, audience []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	m := &sseMessage{ID: h.lastID, Topic: topic, Data: payload, Audience: audience}

	h.recent = append(h.recent, m)
	if len(h.recent) > sseReplaySize {
		h.recent = h.recent[len(h.recent)-sseReplaySize:]
	}

	for c := range h.clients {
		if !c.filter.allows(m) {
			continue
		}
		select {
		case c.ch <- m:
		default:
			// Slow clients lose messages; they can reconnect with
			// Last-Event-ID.
		}
	}
}

// subscribe registers a live-only client.
func (h *sseHub) subscribe(f streamFilter) *sseClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addLocked(f)
}

// subscribeAfter registers a client and returns the buffered messages
// after lastID that pass its filter.
func (h *sseHub) subscribeAfter(f streamFilter, lastID uint64) (*sseClient, []*sseMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var backlog []*sseMessage
	for _, m := range h.sinceLocked(lastID) {
		if f.allows(m) {
			backlog = append(backlog, m)
		}
	}
	return h.addLocked(f), backlog
}

func (h *sseHub) addLocked(f streamFilter) *sseClient {
	c := &sseClient{filter: f, ch: make(chan *sseMessage, sseClientBuffer)}
	h.clients[c] = struct{}{}
	return c
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// since returns the buffered messages with ID > lastID, oldest first.
func (h *sseHub) since(lastID uint64) []*sseMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.sinceLocked(lastID))
}

func (h *sseHub) sinceLocked(lastID uint64) []*sseMessage {
	i, _ := slices.BinarySearchFunc(h.recent, lastID+1, func(m *sseMessage, id uint64) int {
		switch {
		case m.ID < id:
			return -1
		case m.ID > id:
			return 1
		}
		return 0
	})
	return h.recent[i:]
}

// handleEventStream serves GET /v1/stream. ?topics= takes comma-separated
// patterns and ?profile= keeps only messages about that profile. A
// Last-Event-ID header replays what the client missed.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := parseStreamFilter(r.URL.Query())
	var (
		client  *sseClient
		backlog []*sseMessage
	)
	if lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		client, backlog = s.sseHub.subscribeAfter(filter, lastID)
	} else {
		client = s.sseHub.subscribe(filter)
	}
	defer s.sseHub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry:%d\n\n", sseRetry.Milliseconds())
	for _, m := range backlog {
		writeSSEMessage(w, m)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-client.ch:
			writeSSEMessage(w, m)
			flusher.Flush()
		case <-keepalive.C:
			io.WriteString(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEMessage(w io.Writer, m *sseMessage) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", m.ID, m.Topic, m.Data)
}
