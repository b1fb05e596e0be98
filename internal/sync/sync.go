// Package sync periodically copies the scheduler's data to external
// destinations: a JSONL backup in S3 or a git repository, and an iCalendar
// file on a WebDAV share.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/rendezvous/internal/clock"
	"github.com/alfredjeanlab/rendezvous/internal/metrics"
	"github.com/alfredjeanlab/rendezvous/internal/store"
)

// Destination is a sync target.
type Destination interface {
	// Name labels the destination in logs and metrics.
	Name() string
	// Write publishes snap.
	Write(ctx context.Context, snap *Snapshot) error
}

// Options tunes a Scheduler. Zero fields take defaults.
type Options struct {
	Interval     time.Duration // default 3m
	WriteTimeout time.Duration // per destination; zero is unbounded
	Clock        clock.Clock
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Scheduler snapshots the store on an interval, or on demand, and hands the
// snapshot to every destination concurrently.
type Scheduler struct {
	store store.Store
	dests []Destination
	opts  Options

	trigger chan struct{}
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

func NewScheduler(st store.Store, dests []Destination, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		store:   st,
		dests:   dests,
		opts:    opts,
		trigger: make(chan struct{}, 1),
	}
}

// Start syncs once right away and then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done.Go(func() { s.loop(ctx) })
}

// Stop ends the loop and waits for a sync in progress.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.done.Wait()
}

// Trigger asks for a sync ahead of the next tick. Requests made while one
// is pending collapse into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if err := s.SyncOnce(ctx); err != nil {
			s.opts.Logger.Error("sync failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
			ticker.Reset(s.opts.Interval)
		}
	}
}

// SyncOnce takes one snapshot and writes it everywhere. A destination that
// fails does not stop the others; their errors are joined.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	snap, err := Load(ctx, s.store, s.opts.Clock.Now())
	if err != nil {
		for _, d := range s.dests {
			s.opts.Metrics.IncrementSyncRun(d.Name(), err)
		}
		return err
	}

	errs := make([]error, len(s.dests))
	var g errgroup.Group
	for i, d := range s.dests {
		g.Go(func() error {
			errs[i] = s.write(ctx, d, snap)
			return nil
		})
	}
	g.Wait()

	err = errors.Join(errs...)
	s.opts.Logger.Info("sync completed",
		"destinations", len(s.dests),
		"taken", snap.Taken,
		"contents", snap.Summary(),
		"ok", err == nil,
	)
	return err
}

func (s *Scheduler) write(ctx context.Context, d Destination, snap *Snapshot) error {
	if s.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.WriteTimeout)
		defer cancel()
	}
	start := time.Now()
	err := d.Write(ctx, snap)
	s.opts.Metrics.IncrementSyncRun(d.Name(), err)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Name(), err)
	}
	s.opts.Logger.Debug("sync destination written", "destination", d.Name(), "duration", time.Since(start))
	return nil
}
