package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

const organizationCols = `id, name, street, postal_code, city, phone, email, business_id, iban, bic, created_at, updated_at`

// OrganizationStore holds the single organization profile printed on
// invoices.
type OrganizationStore struct {
	ledger *Ledger
}

func NewOrganizationStore(ledger *Ledger) *OrganizationStore {
	return &OrganizationStore{ledger: ledger}
}

func getOrganization(ctx context.Context, q querier) (*model.Organization, error) {
	var o model.Organization
	err := q.QueryRowContext(ctx, `SELECT `+organizationCols+` FROM organization ORDER BY id LIMIT 1`).Scan(
		&o.ID, &o.Name, &o.Street, &o.PostalCode, &o.City, &o.Phone, &o.Email, &o.BusinessID, &o.IBAN, &o.BIC,
		&o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get organization", err)
	}
	return &o, nil
}

// Get returns the profile, or nil before one has been saved.
func (s *OrganizationStore) Get(ctx context.Context) (*model.Organization, error) {
	var org *model.Organization
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		var err error
		org, err = getOrganization(ctx, tx)
		return err
	})
	return org, err
}

// Save creates or replaces the profile. A non-empty IBAN must be a valid
// Finnish IBAN and is stored without spaces.
func (s *OrganizationStore) Save(ctx context.Context, o model.Organization) (*model.Organization, error) {
	if strings.TrimSpace(o.Name) == "" {
		return nil, fmt.Errorf("%w: organization name is required", billing.ErrValidation)
	}
	if o.IBAN != nil {
		iban := billing.NormalizeIBAN(*o.IBAN)
		if iban == "" {
			o.IBAN = nil
		} else if !billing.ValidIBAN(iban) {
			return nil, fmt.Errorf("%w: invalid IBAN %q", billing.ErrValidation, *o.IBAN)
		} else {
			o.IBAN = &iban
		}
	}

	var saved *model.Organization
	err := s.ledger.write(ctx, func(tx *sql.Tx) error {
		existing, err := getOrganization(ctx, tx)
		if err != nil {
			return err
		}
		if existing == nil {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO organization (name, street, postal_code, city, phone, email, business_id, iban, bic)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				o.Name, o.Street, o.PostalCode, o.City, o.Phone, o.Email, o.BusinessID, o.IBAN, o.BIC)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE organization SET name = ?, street = ?, postal_code = ?, city = ?, phone = ?, email = ?,
				 business_id = ?, iban = ?, bic = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				o.Name, o.Street, o.PostalCode, o.City, o.Phone, o.Email, o.BusinessID, o.IBAN, o.BIC, existing.ID)
		}
		if err != nil {
			return storageErr("save organization", err)
		}
		saved, err = getOrganization(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
