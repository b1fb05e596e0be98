package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rendezvous/internal/clock"
	"github.com/alfredjeanlab/rendezvous/internal/config"
	"github.com/alfredjeanlab/rendezvous/internal/events"
	"github.com/alfredjeanlab/rendezvous/internal/metrics"
	"github.com/alfredjeanlab/rendezvous/internal/server"
	"github.com/alfredjeanlab/rendezvous/internal/store"
	"github.com/alfredjeanlab/rendezvous/internal/store/memory"
	"github.com/alfredjeanlab/rendezvous/internal/store/postgres"
	rvsync "github.com/alfredjeanlab/rendezvous/internal/sync"
)

// newLogger builds the process logger from the configured level and format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%s_LOG_LEVEL: %w", config.EnvPrefix, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%s_LOG_FORMAT: unknown format %q", config.EnvPrefix, format)
	}
}

// openStore connects the configured backend. Postgres migrations run on
// connect.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return postgres.New(cfg.DatabaseURL)
	}
}

// syncDestinations builds every configured destination. A destination that
// fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []rvsync.Destination {
	var dests []rvsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := rvsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncGitRepo != "" {
		dests = append(dests, rvsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	if cfg.WebDAVURL != "" {
		davDest, err := rvsync.NewWebDAVDestination(cfg.WebDAVURL, cfg.WebDAVUser, cfg.WebDAVPassword, cfg.WebDAVPath)
		if err != nil {
			logger.Error("failed to create WebDAV sync destination", "err", err)
		} else {
			dests = append(dests, davDest)
			logger.Info("sync WebDAV destination enabled", "url", cfg.WebDAVURL, "path", cfg.WebDAVPath)
		}
	}

	return dests
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the Rendezvous HTTP and gRPC server",
	GroupID: "system",
	// The server needs no client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		logger.Info("store ready", "backend", cfg.Store)

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (RENDEZVOUS_NATS_URL not set)")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)
		sysClock := clock.NewSystem()

		srv := server.New(st, publisher,
			server.WithClock(sysClock),
			server.WithMetrics(m),
			server.WithLogger(logger),
		)
		grpcServer := server.NewGRPCServer(srv)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *rvsync.Scheduler
		if cfg.SyncInterval > 0 {
			if dests := syncDestinations(context.Background(), cfg, logger); len(dests) > 0 {
				scheduler = rvsync.NewScheduler(st, dests, rvsync.Options{
					Interval:     cfg.SyncInterval,
					WriteTimeout: time.Minute,
					Clock:        sysClock,
					Metrics:      m,
					Logger:       logger,
				})
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "destinations", len(dests))
			}
		}

		logger.Info("rendezvous server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		// SIGHUP asks for an immediate sync; INT and TERM shut down.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for sig := range sigCh {
			if sig != syscall.SIGHUP {
				logger.Info("received signal, shutting down", "signal", sig)
				break
			}
			if scheduler != nil {
				logger.Info("sync requested", "signal", sig)
				scheduler.Trigger()
			}
		}
		signal.Stop(sigCh)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
