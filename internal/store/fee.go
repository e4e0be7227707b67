package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

const feeCols = `id, year, member_type, amount_cents, created_at, updated_at`

func scanFee(s scanner) (*model.MembershipFee, error) {
	var f model.MembershipFee
	var memberType string
	if err := s.Scan(&f.ID, &f.Year, &memberType, &f.AmountCents, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if f.MemberType, err = parseMemberType(memberType); err != nil {
		return nil, err
	}
	return &f, nil
}

// FeeStore maintains the fee catalog, one amount per year and member type.
type FeeStore struct {
	ledger *Ledger
}

func NewFeeStore(ledger *Ledger) *FeeStore {
	return &FeeStore{ledger: ledger}
}

// Set creates the fee for year and member type, or changes its amount when
// it already exists. Amounts of invoices already created are not touched.
func (s *FeeStore) Set(ctx context.Context, year int, memberType model.MemberType, amountCents int64) (*model.MembershipFee, error) {
	if !memberType.Valid() {
		return nil, fmt.Errorf("%w: unknown member type %q", billing.ErrValidation, memberType)
	}
	if amountCents < 0 {
		return nil, fmt.Errorf("%w: fee cannot be negative", billing.ErrValidation)
	}
	if year < 1000 || year > 9999 {
		return nil, fmt.Errorf("%w: year %d is not a four-digit year", billing.ErrValidation, year)
	}

	var fee *model.MembershipFee
	err := s.ledger.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO membership_fees (year, member_type, amount_cents) VALUES (?, ?, ?)
			 ON CONFLICT (year, member_type) DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = CURRENT_TIMESTAMP`,
			year, memberType, amountCents)
		if err != nil {
			return storageErr("upsert fee", err)
		}
		fee, err = scanFee(tx.QueryRowContext(ctx,
			`SELECT `+feeCols+` FROM membership_fees WHERE year = ? AND member_type = ?`, year, memberType))
		if err != nil {
			return storageErr("get fee", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fee, nil
}

// List returns the fees of year, or every fee when year is 0.
func (s *FeeStore) List(ctx context.Context, year int) ([]model.MembershipFee, error) {
	query := `SELECT ` + feeCols + ` FROM membership_fees`
	var args []any
	if year != 0 {
		query += ` WHERE year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY year DESC, CASE member_type WHEN 'regular' THEN 0 WHEN 'supporting' THEN 1 ELSE 2 END`

	var fees []model.MembershipFee
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return storageErr("list fees", err)
		}
		defer rows.Close()

		for rows.Next() {
			f, err := scanFee(rows)
			if err != nil {
				return storageErr("scan fee", err)
			}
			fees = append(fees, *f)
		}
		if err := rows.Err(); err != nil {
			return storageErr("iterate fees", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fees, nil
}
