package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/rendezvous/internal/metrics"
	"github.com/alfredjeanlab/rendezvous/internal/store/memory"
)

var listEventsInfo = &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/ListEvents"}

// observedServer returns a server whose logs land in buf.
func observedServer(buf *bytes.Buffer, m *metrics.Metrics) *Server {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(memory.New(), nil, WithLogger(logger), WithMetrics(m))
}

func returning(resp any, err error) grpc.UnaryHandler {
	return func(context.Context, any) (any, error) { return resp, err }
}

func TestObserveUnary(t *testing.T) {
	for _, tc := range []struct {
		name  string
		err   error
		code  string
		level string
	}{
		{"ok", nil, "OK", "level=INFO"},
		{"caller mistake", status.Error(codes.NotFound, "not_found: no such event"), "NotFound", "level=WARN"},
		{"server fault", status.Error(codes.Unavailable, "store down"), "Unavailable", "level=ERROR"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			m := metrics.New(prometheus.NewRegistry())
			s := observedServer(&buf, m)

			resp, err := s.observeUnary(context.Background(), nil, listEventsInfo, returning("ok", tc.err))
			if !errors.Is(err, tc.err) {
				t.Fatalf("error not passed through: %v", err)
			}
			if tc.err == nil && resp != "ok" {
				t.Fatalf("response not passed through: %v", resp)
			}
			line := buf.String()
			if !strings.Contains(line, tc.level) || !strings.Contains(line, "code="+tc.code) || !strings.Contains(line, "ListEvents") {
				t.Fatalf("unexpected log line %q", line)
			}
			if got := testutil.ToFloat64(m.RPCRequests.WithLabelValues(listEventsInfo.FullMethod, tc.code)); got != 1 {
				t.Fatalf("expected 1 %s rpc, got %v", tc.code, got)
			}
		})
	}
}

func TestObserveUnary_NoMetrics(t *testing.T) {
	s := observedServer(&bytes.Buffer{}, nil)
	if _, err := s.observeUnary(context.Background(), nil, listEventsInfo, returning("ok", nil)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestRecoverUnary(t *testing.T) {
	var buf bytes.Buffer
	s := observedServer(&buf, nil)

	panicking := func(context.Context, any) (any, error) {
		panic(errors.New("boom"))
	}
	_, err := s.recoverUnary(context.Background(), nil, listEventsInfo, panicking)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected the panic value logged, got %q", buf.String())
	}

	resp, err := s.recoverUnary(context.Background(), nil, listEventsInfo, returning("ok", nil))
	if err != nil || resp != "ok" {
		t.Fatalf("expected pass-through, got %v, %v", resp, err)
	}
}
