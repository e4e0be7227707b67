// Package scheduler runs the annual billing run on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/websocket"
)

type Biller interface {
	Validate(ctx context.Context, year int) (*billing.Validation, error)
	GenerateForYear(ctx context.Context, year int) ([]model.Invoice, error)
}

type Snapshotter interface {
	Enabled() bool
	Take(ctx context.Context) (*model.Snapshot, error)
}

type Broadcaster interface {
	Broadcast(e websocket.Event)
}

// Scheduler triggers invoice generation for the current calendar year.
type Scheduler struct {
	cron          *cron.Cron
	biller        Biller
	snapshots     Snapshotter
	hub           Broadcaster
	snapshotFirst bool
	now           func() time.Time
	logger        *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

type Option func(*Scheduler)

// WithSnapshotFirst takes a database snapshot before each run when the
// snapshotter is enabled.
func WithSnapshotFirst(s Snapshotter) Option {
	return func(sc *Scheduler) {
		sc.snapshots = s
		sc.snapshotFirst = true
	}
}

func WithBroadcaster(b Broadcaster) Option {
	return func(sc *Scheduler) { sc.hub = b }
}

func WithClock(now func() time.Time) Option {
	return func(sc *Scheduler) { sc.now = now }
}

// New parses spec as a standard five-field cron expression.
func New(spec string, biller Biller, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		biller: biller,
		now:    time.Now,
		logger: logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("schedule billing run %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels a run in flight and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("scheduled billing run failed", "error", err)
	}
}

// Run bills the current year once. A year with nothing to bill is not an
// error; it returns no invoices.
func (s *Scheduler) Run(ctx context.Context) ([]model.Invoice, error) {
	year := s.now().Year()
	log := s.logger.With("year", year)

	if s.snapshotFirst && s.snapshots != nil && s.snapshots.Enabled() {
		if _, err := s.snapshots.Take(ctx); err != nil {
			return nil, fmt.Errorf("snapshot before billing: %w", err)
		}
	}

	v, err := s.biller.Validate(ctx, year)
	if errors.Is(err, billing.ErrValidation) {
		log.Info("billing run skipped", "reason", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	log.Info("billing run starting", "pending", v.Pending)

	invoices, err := s.biller.GenerateForYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	var total int64
	for _, inv := range invoices {
		total += inv.AmountCents
	}
	if s.hub != nil && len(invoices) > 0 {
		s.hub.Broadcast(websocket.InvoicesGenerated(year, len(invoices), total))
	}
	return invoices, nil
}
