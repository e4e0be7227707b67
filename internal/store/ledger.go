package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dukerupert/laskutin/internal/billing"
)

// Ledger owns the database handle and serializes every operation on it
// behind one lock. Each View or Update runs in its own transaction.
type Ledger struct {
	mu sync.Mutex
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// View runs fn against billing storage in a transaction that is always
// rolled back.
func (l *Ledger) View(ctx context.Context, fn func(billing.Storage) error) error {
	return l.read(ctx, func(tx *sql.Tx) error {
		return fn(&queries{tx: tx})
	})
}

// Update runs fn against billing storage and commits only if fn succeeds.
func (l *Ledger) Update(ctx context.Context, fn func(billing.Storage) error) error {
	return l.write(ctx, func(tx *sql.Tx) error {
		return fn(&queries{tx: tx})
	})
}

func (l *Ledger) read(ctx context.Context, fn func(*sql.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback()

	return fn(tx)
}

func (l *Ledger) write(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit tx", err)
	}
	return nil
}

// VacuumInto writes a consistent copy of the database to path.
func (l *Ledger) VacuumInto(ctx context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return storageErr("vacuum into", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// storageErr wraps a database failure so callers can tell it apart from
// billing rule violations.
func storageErr(op string, err error) error {
	var se *billing.StorageError
	if errors.As(err, &se) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &billing.StorageError{Op: op, Err: err}
}
