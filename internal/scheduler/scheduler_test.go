package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
	"github.com/dukerupert/laskutin/internal/websocket"
)

type fakeBiller struct {
	validateErr error
	invoices    []model.Invoice
	calls       []string
	years       []int
}

func (f *fakeBiller) Validate(_ context.Context, year int) (*billing.Validation, error) {
	f.calls = append(f.calls, "validate")
	f.years = append(f.years, year)
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return &billing.Validation{Year: year, Pending: len(f.invoices)}, nil
}

func (f *fakeBiller) GenerateForYear(_ context.Context, year int) ([]model.Invoice, error) {
	f.calls = append(f.calls, "generate")
	f.years = append(f.years, year)
	return f.invoices, nil
}

type fakeSnapshots struct {
	enabled bool
	err     error
	biller  *fakeBiller
}

func (f *fakeSnapshots) Enabled() bool { return f.enabled }

func (f *fakeSnapshots) Take(context.Context) (*model.Snapshot, error) {
	f.biller.calls = append(f.biller.calls, "snapshot")
	if f.err != nil {
		return nil, f.err
	}
	return &model.Snapshot{ID: 1, Status: model.SnapshotStatusCompleted}, nil
}

type recordingHub struct {
	events []websocket.Event
}

func (h *recordingHub) Broadcast(e websocket.Event) { h.events = append(h.events, e) }

func fixedClock() time.Time {
	return time.Date(2025, time.January, 15, 6, 0, 0, 0, time.UTC)
}

func newTestScheduler(t *testing.T, b Biller, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	s, err := New("0 6 15 1 *", b, slog.New(slog.DiscardHandler), opts...)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New("every tuesday", &fakeBiller{}, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestRunGeneratesCurrentYear(t *testing.T) {
	b := &fakeBiller{invoices: []model.Invoice{{ID: 1, AmountCents: 2500}, {ID: 2, AmountCents: 3500}}}
	hub := &recordingHub{}
	s := newTestScheduler(t, b, WithBroadcaster(hub))

	invoices, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(invoices) != 2 {
		t.Errorf("invoices = %d, want 2", len(invoices))
	}
	for _, y := range b.years {
		if y != 2025 {
			t.Errorf("year = %d, want 2025", y)
		}
	}

	if len(hub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(hub.events))
	}
	e := hub.events[0]
	if e.Year != 2025 || e.Data["count"] != 2 || e.Data["amount_cents"] != int64(6000) {
		t.Errorf("event = %+v", e)
	}
}

func TestRunSkipsWhenNothingToBill(t *testing.T) {
	b := &fakeBiller{validateErr: fmt.Errorf("%w: invoices already exist for 2025", billing.ErrValidation)}
	hub := &recordingHub{}
	s := newTestScheduler(t, b, WithBroadcaster(hub))

	invoices, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if invoices != nil {
		t.Errorf("invoices = %v, want nil", invoices)
	}
	if len(b.calls) != 1 || b.calls[0] != "validate" {
		t.Errorf("calls = %v, want [validate]", b.calls)
	}
	if len(hub.events) != 0 {
		t.Errorf("events = %d, want 0", len(hub.events))
	}
}

func TestRunPropagatesStorageErrors(t *testing.T) {
	b := &fakeBiller{validateErr: &billing.StorageError{Op: "count", Err: errors.New("disk I/O error")}}
	s := newTestScheduler(t, b)

	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunTakesSnapshotFirst(t *testing.T) {
	b := &fakeBiller{invoices: []model.Invoice{{ID: 1, AmountCents: 2500}}}
	snaps := &fakeSnapshots{enabled: true, biller: b}
	s := newTestScheduler(t, b, WithSnapshotFirst(snaps))

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"snapshot", "validate", "generate"}
	if fmt.Sprint(b.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", b.calls, want)
	}
}

func TestRunAbortsWhenSnapshotFails(t *testing.T) {
	b := &fakeBiller{}
	snaps := &fakeSnapshots{enabled: true, err: errors.New("bucket gone"), biller: b}
	s := newTestScheduler(t, b, WithSnapshotFirst(snaps))

	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(b.calls) != 1 {
		t.Errorf("calls = %v, want only snapshot", b.calls)
	}
}

func TestRunSkipsDisabledSnapshots(t *testing.T) {
	b := &fakeBiller{}
	snaps := &fakeSnapshots{enabled: false, biller: b}
	s := newTestScheduler(t, b, WithSnapshotFirst(snaps))

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.calls[0] != "validate" {
		t.Errorf("calls = %v, want validate first", b.calls)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(t, &fakeBiller{})
	s.Start(context.Background())
	s.Start(context.Background())

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
