package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/laskutin/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface{ Scan(...any) error }

func parseMemberType(s string) (model.MemberType, error) {
	t, err := model.ParseMemberType(s)
	if err != nil {
		return "", storageErr("decode member type", err)
	}
	return t, nil
}

func parseDate(s string) (model.Date, error) {
	d, err := model.ParseDate(s)
	if err != nil {
		return model.Date{}, storageErr("decode date", err)
	}
	return d, nil
}

func parseNullDate(s sql.NullString) (*model.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := parseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDate(d *model.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
