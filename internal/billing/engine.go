package billing

import (
	"fmt"
	"log/slog"
	"time"
)

// paymentTermDays is the number of days between invoice creation and due date.
const paymentTermDays = 30

// Recorder receives billing outcomes, typically to update metrics.
type Recorder interface {
	InvoicesCreated(year int, count int, amountCents int64)
	DeletionRefused(entity string)
	ObserveRun(op string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) InvoicesCreated(int, int, int64) {}
func (nopRecorder) DeletionRefused(string) {}
func (nopRecorder) ObserveRun(string, time.Duration, error) {}

// Engine runs invoice validation, invoice generation and guarded deletes
// against a Sessions implementation.
type Engine struct {
	sessions Sessions
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

type Option func(*Engine)

// WithClock overrides the clock used for invoice creation dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

func New(sessions Sessions, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		sessions: sessions,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func checkYear(year int) error {
	if year < 1000 || year > 9999 {
		return fmt.Errorf("%w: year %d is not a four-digit year", ErrValidation, year)
	}
	return nil
}
