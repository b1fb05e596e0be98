// Package server implements the scheduler's mutation policy and serves it
// over HTTP/JSON and gRPC.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/rendezvous/internal/clock"
	"github.com/alfredjeanlab/rendezvous/internal/events"
	"github.com/alfredjeanlab/rendezvous/internal/metrics"
	"github.com/alfredjeanlab/rendezvous/internal/model"
	"github.com/alfredjeanlab/rendezvous/internal/store"
)

// Server owns the store and the side channels every mutation reports to.
type Server struct {
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
	locks     *eventLocks
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the time source used for timestamps and "today".
func WithClock(c clock.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithMetrics enables Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server backed by the given store and publisher. A nil
// publisher disables NATS.
func New(st store.Store, p events.Publisher, opts ...Option) *Server {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	s := &Server{
		store:     st,
		publisher: p,
		sseHub:    newSSEHub(),
		locks:     &eventLocks{},
		clock:     clock.NewSystem(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// recordAndPublish persists a domain message as activity, publishes it to
// NATS and fans it out to SSE clients. All three are best-effort: the
// mutation has already committed, so failures are logged and swallowed.
func (s *Server) recordAndPublish(ctx context.Context, topic, subjectID, actor string, payload any) {
	ctx = context.WithoutCancel(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal message", "topic", topic, "subject_id", subjectID, "error", err)
		return
	}
	if err := s.store.RecordActivity(ctx, &model.Activity{
		Topic:     topic,
		SubjectID: subjectID,
		Actor:     actor,
		Payload:   data,
		CreatedAt: s.clock.Now(),
	}); err != nil {
		s.logger.Warn("failed to record activity", "topic", topic, "subject_id", subjectID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		s.logger.Warn("failed to publish message", "topic", topic, "subject_id", subjectID, "error", err)
	}
	s.sseHub.broadcast(topic, data, events.Audience(payload))
}

// inputError indicates malformed transport input, as opposed to a domain
// validation failure. Transport layers map it to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
