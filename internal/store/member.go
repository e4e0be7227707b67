package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

const memberCols = `m.id, m.first_name, m.last_name, m.national_id, m.birth_date, m.phone, m.email,
	m.address_id, m.join_date, m.member_type, m.active, m.created_at, m.updated_at`

// scanMemberWith scans a row whose leading columns go to prefix and whose
// remaining columns are memberCols.
func scanMemberWith(s scanner, prefix ...any) (*model.Member, error) {
	var m model.Member
	var birthDate sql.NullString
	var joinDate, memberType string
	dest := append(prefix, &m.ID, &m.FirstName, &m.LastName, &m.NationalID, &birthDate, &m.Phone, &m.Email,
		&m.AddressID, &joinDate, &memberType, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if m.BirthDate, err = parseNullDate(birthDate); err != nil {
		return nil, err
	}
	if m.JoinDate, err = parseDate(joinDate); err != nil {
		return nil, err
	}
	if m.MemberType, err = parseMemberType(memberType); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewHousehold describes a household created together with its first member.
type NewHousehold struct {
	Name      *string            `json:"name,omitempty"`
	Addressee *string            `json:"addressee,omitempty"`
	Address   model.AddressInput `json:"address"`
}

// MemberParams is a member as entered by a user. Exactly one of HouseholdID
// and Household must be set.
type MemberParams struct {
	FirstName   string
	LastName    string
	NationalID  *string
	BirthDate   *model.Date
	Phone       *string
	Email       *string
	JoinDate    model.Date
	MemberType  model.MemberType
	Active      bool
	HouseholdID *int64
	Household   *NewHousehold
}

func (p MemberParams) validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", billing.ErrValidation)
	}
	if !p.MemberType.Valid() {
		return fmt.Errorf("%w: unknown member type %q", billing.ErrValidation, p.MemberType)
	}
	if p.JoinDate.IsZero() {
		return fmt.Errorf("%w: join date is required", billing.ErrValidation)
	}
	if (p.HouseholdID == nil) == (p.Household == nil) {
		return fmt.Errorf("%w: give either an existing household or a new one", billing.ErrValidation)
	}
	return nil
}

type MemberStore struct {
	ledger *Ledger
}

func NewMemberStore(ledger *Ledger) *MemberStore {
	return &MemberStore{ledger: ledger}
}

// Create adds a member to an existing household, or creates the household
// and its address together with the member.
func (s *MemberStore) Create(ctx context.Context, p MemberParams) (*model.MemberWithHousehold, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var memberID int64
	err := s.ledger.write(ctx, func(tx *sql.Tx) error {
		var addressID int64
		if p.HouseholdID != nil {
			addr, err := householdAddress(ctx, tx, *p.HouseholdID)
			if err != nil {
				return err
			}
			if addr == nil {
				return fmt.Errorf("%w: household %d", billing.ErrNotFound, *p.HouseholdID)
			}
			addressID = addr.ID
		} else {
			result, err := tx.ExecContext(ctx,
				`INSERT INTO households (name, addressee, billing_address_is_own) VALUES (?, ?, 1)`,
				p.Household.Name, p.Household.Addressee)
			if err != nil {
				return storageErr("insert household", err)
			}
			householdID, err := result.LastInsertId()
			if err != nil {
				return storageErr("last insert id", err)
			}
			if addressID, err = insertAddress(ctx, tx, householdID, p.Household.Address); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO members (first_name, last_name, national_id, birth_date, phone, email, address_id, join_date, member_type, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName), p.NationalID, nullDate(p.BirthDate),
			p.Phone, p.Email, addressID, p.JoinDate.String(), p.MemberType, p.Active)
		if err != nil {
			return storageErr("insert member", err)
		}
		if memberID, err = result.LastInsertId(); err != nil {
			return storageErr("last insert id", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, memberID)
}

const memberWithHouseholdQuery = `SELECT ` + addressCols + `, ` + householdCols + `, ` + memberCols + `
	FROM members m
	JOIN addresses a ON a.id = m.address_id
	JOIN households h ON h.id = a.household_id`

func scanMemberWithHousehold(s scanner) (*model.MemberWithHousehold, error) {
	var mh model.MemberWithHousehold
	a, h := &mh.Address, &mh.Household
	m, err := scanMemberWith(s,
		&a.ID, &a.Street, &a.PostalCode, &a.City, &a.HouseholdID, &a.CreatedAt, &a.UpdatedAt,
		&h.ID, &h.Name, &h.Addressee, &h.BillingAddressIsOwn, &h.BillingAddressID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	mh.Member = *m
	return &mh, nil
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.MemberWithHousehold, error) {
	var mh *model.MemberWithHousehold
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		var err error
		mh, err = scanMemberWithHousehold(tx.QueryRowContext(ctx, memberWithHouseholdQuery+` WHERE m.id = ?`, id))
		if err == sql.ErrNoRows {
			mh = nil
			return nil
		}
		if err != nil {
			return storageErr("get member", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mh, nil
}

func (s *MemberStore) List(ctx context.Context) ([]model.MemberWithHousehold, error) {
	var members []model.MemberWithHousehold
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, memberWithHouseholdQuery+` ORDER BY m.last_name, m.first_name, m.id`)
		if err != nil {
			return storageErr("list members", err)
		}
		defer rows.Close()

		for rows.Next() {
			mh, err := scanMemberWithHousehold(rows)
			if err != nil {
				return storageErr("scan member", err)
			}
			members = append(members, *mh)
		}
		if err := rows.Err(); err != nil {
			return storageErr("iterate members", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// SetActive marks a member active or inactive. Inactive members are not
// invoiced.
func (s *MemberStore) SetActive(ctx context.Context, id int64, active bool) (*model.MemberWithHousehold, error) {
	err := s.ledger.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE members SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
		if err != nil {
			return storageErr("update member active", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return storageErr("rows affected", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: member %d", billing.ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}
