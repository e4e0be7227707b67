package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

const householdCols = `h.id, h.name, h.addressee, h.billing_address_is_own, h.billing_address_id, h.created_at, h.updated_at`
const addressCols = `a.id, a.street, a.postal_code, a.city, a.household_id, a.created_at, a.updated_at`

func scanHousehold(s scanner) (*model.Household, error) {
	var h model.Household
	err := s.Scan(&h.ID, &h.Name, &h.Addressee, &h.BillingAddressIsOwn, &h.BillingAddressID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanAddress(s scanner) (*model.Address, error) {
	var a model.Address
	err := s.Scan(&a.ID, &a.Street, &a.PostalCode, &a.City, &a.HouseholdID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func getHousehold(ctx context.Context, q querier, id int64) (*model.Household, error) {
	h, err := scanHousehold(q.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households h WHERE h.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get household", err)
	}
	return h, nil
}

func getAddress(ctx context.Context, q querier, id int64) (*model.Address, error) {
	a, err := scanAddress(q.QueryRowContext(ctx, `SELECT `+addressCols+` FROM addresses a WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get address", err)
	}
	return a, nil
}

// householdAddress returns the household's own address, the first one
// created for it. A separate billing address is always added later.
func householdAddress(ctx context.Context, q querier, householdID int64) (*model.Address, error) {
	a, err := scanAddress(q.QueryRowContext(ctx,
		`SELECT `+addressCols+` FROM addresses a WHERE a.household_id = ? ORDER BY a.id LIMIT 1`, householdID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get household address", err)
	}
	return a, nil
}

func insertAddress(ctx context.Context, q querier, householdID int64, in model.AddressInput) (int64, error) {
	if strings.TrimSpace(in.Street) == "" || strings.TrimSpace(in.PostalCode) == "" || strings.TrimSpace(in.City) == "" {
		return 0, fmt.Errorf("%w: street, postal code and city are required", billing.ErrValidation)
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO addresses (street, postal_code, city, household_id) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(in.Street), strings.TrimSpace(in.PostalCode), strings.TrimSpace(in.City), householdID,
	)
	if err != nil {
		return 0, storageErr("insert address", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("last insert id", err)
	}
	return id, nil
}

type HouseholdStore struct {
	ledger *Ledger
}

func NewHouseholdStore(ledger *Ledger) *HouseholdStore {
	return &HouseholdStore{ledger: ledger}
}

func (s *HouseholdStore) GetByID(ctx context.Context, id int64) (*model.HouseholdSummary, error) {
	var summary *model.HouseholdSummary
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		h, err := getHousehold(ctx, tx, id)
		if err != nil || h == nil {
			return err
		}
		a, err := householdAddress(ctx, tx, id)
		if err != nil {
			return err
		}
		summary = &model.HouseholdSummary{Household: *h}
		if a != nil {
			summary.Address = *a
		}
		return tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM members m JOIN addresses a ON a.id = m.address_id WHERE a.household_id = ?`, id,
		).Scan(&summary.MemberCount)
	})
	if err != nil {
		return nil, storageErr("get household summary", err)
	}
	return summary, nil
}

func (s *HouseholdStore) List(ctx context.Context) ([]model.HouseholdSummary, error) {
	var summaries []model.HouseholdSummary
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+householdCols+`, `+addressCols+`,
			        (SELECT COUNT(*) FROM members m WHERE m.address_id IN
			            (SELECT id FROM addresses WHERE household_id = h.id))
			 FROM households h
			 JOIN addresses a ON a.id = (SELECT MIN(id) FROM addresses WHERE household_id = h.id)
			 ORDER BY h.id`)
		if err != nil {
			return storageErr("list households", err)
		}
		defer rows.Close()

		for rows.Next() {
			var hs model.HouseholdSummary
			h, a := &hs.Household, &hs.Address
			err := rows.Scan(&h.ID, &h.Name, &h.Addressee, &h.BillingAddressIsOwn, &h.BillingAddressID, &h.CreatedAt, &h.UpdatedAt,
				&a.ID, &a.Street, &a.PostalCode, &a.City, &a.HouseholdID, &a.CreatedAt, &a.UpdatedAt,
				&hs.MemberCount)
			if err != nil {
				return storageErr("scan household", err)
			}
			summaries = append(summaries, hs)
		}
		if err := rows.Err(); err != nil {
			return storageErr("iterate households", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// SetBillingAddress points the household's invoices at a separate billing
// address, or back at its own address when in is nil.
func (s *HouseholdStore) SetBillingAddress(ctx context.Context, householdID int64, addressee *string, in *model.AddressInput) (*model.HouseholdSummary, error) {
	err := s.ledger.write(ctx, func(tx *sql.Tx) error {
		h, err := getHousehold(ctx, tx, householdID)
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("%w: household %d", billing.ErrNotFound, householdID)
		}

		if in == nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE households SET addressee = ?, billing_address_is_own = 1, billing_address_id = NULL,
				 updated_at = CURRENT_TIMESTAMP WHERE id = ?`, addressee, householdID)
		} else {
			var addrID int64
			if addrID, err = insertAddress(ctx, tx, householdID, *in); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE households SET addressee = ?, billing_address_is_own = 0, billing_address_id = ?,
				 updated_at = CURRENT_TIMESTAMP WHERE id = ?`, addressee, addrID, householdID)
		}
		if err != nil {
			return storageErr("update billing address", err)
		}
		if h.BillingAddressID != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE id = ?`, *h.BillingAddressID); err != nil {
				return storageErr("delete old billing address", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, householdID)
}
