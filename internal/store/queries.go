package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

// queries implements billing.Storage on one transaction.
type queries struct {
	tx *sql.Tx
}

var _ billing.Storage = (*queries)(nil)

const billableMemberQuery = `
	SELECT m.id, a.household_id, m.first_name, m.last_name, m.member_type, f.amount_cents
	FROM members m
	JOIN addresses a ON a.id = m.address_id
	JOIN membership_fees f ON f.member_type = m.member_type AND f.year = ?
	WHERE m.active = 1`

// invoicedInYear matches invoices billing a year or created during it.
const invoicedInYear = `(billing_year = ? OR substr(created_date, 1, 4) = ?)`

func yearText(year int) string {
	return fmt.Sprintf("%04d", year)
}

func (q *queries) billableMembers(ctx context.Context, query string, args ...any) ([]billing.BillableMember, error) {
	rows, err := q.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query billable members", err)
	}
	defer rows.Close()

	var members []billing.BillableMember
	for rows.Next() {
		var m billing.BillableMember
		var memberType string
		if err := rows.Scan(&m.MemberID, &m.HouseholdID, &m.FirstName, &m.LastName, &memberType, &m.FeeCents); err != nil {
			return nil, storageErr("scan billable member", err)
		}
		if m.MemberType, err = parseMemberType(memberType); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate billable members", err)
	}
	return members, nil
}

func (q *queries) ActiveMembersWithFee(ctx context.Context, year int) ([]billing.BillableMember, error) {
	return q.billableMembers(ctx, billableMemberQuery+` ORDER BY a.household_id, m.id`, year)
}

func (q *queries) HouseholdMembersWithFee(ctx context.Context, householdID int64, year int) ([]billing.BillableMember, error) {
	return q.billableMembers(ctx, billableMemberQuery+` AND a.household_id = ? ORDER BY m.id`, year, householdID)
}

func (q *queries) FeeFor(ctx context.Context, year int, memberType model.MemberType) (*int64, error) {
	var amount int64
	err := q.tx.QueryRowContext(ctx,
		`SELECT amount_cents FROM membership_fees WHERE year = ? AND member_type = ?`,
		year, memberType,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get fee", err)
	}
	return &amount, nil
}

func (q *queries) InvoiceExistsForHouseholdYear(ctx context.Context, householdID int64, year, createdYear int) (bool, error) {
	var exists bool
	err := q.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE household_id = ? AND
		 (`+invoicedInYear+` OR substr(created_date, 1, 4) = ?))`,
		householdID, year, yearText(year), yearText(createdYear),
	).Scan(&exists)
	if err != nil {
		return false, storageErr("check invoice exists", err)
	}
	return exists, nil
}

func (q *queries) InsertInvoice(ctx context.Context, inv *model.Invoice) (int64, error) {
	result, err := q.tx.ExecContext(ctx,
		`INSERT INTO invoices (household_id, billing_year, created_date, due_date, amount_cents, reference_number, invoice_number, paid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		inv.HouseholdID, inv.BillingYear, inv.CreatedDate.String(), inv.DueDate.String(),
		inv.AmountCents, inv.ReferenceNumber, inv.InvoiceNumber,
	)
	if err != nil {
		return 0, storageErr("insert invoice", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("last insert id", err)
	}
	return id, nil
}

func (q *queries) InsertInvoiceLine(ctx context.Context, line *model.InvoiceLine) (int64, error) {
	result, err := q.tx.ExecContext(ctx,
		`INSERT INTO invoice_lines (invoice_id, member_id, description, amount_cents) VALUES (?, ?, ?, ?)`,
		line.InvoiceID, line.MemberID, line.Description, line.AmountCents,
	)
	if err != nil {
		return 0, storageErr("insert invoice line", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("last insert id", err)
	}
	return id, nil
}

func (q *queries) ActiveMemberTypes(ctx context.Context) ([]model.MemberType, error) {
	rows, err := q.tx.QueryContext(ctx, `SELECT DISTINCT member_type FROM members WHERE active = 1`)
	if err != nil {
		return nil, storageErr("query member types", err)
	}
	defer rows.Close()

	var types []model.MemberType
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, storageErr("scan member type", err)
		}
		t, err := parseMemberType(s)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate member types", err)
	}
	return types, nil
}

func (q *queries) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	if err := q.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storageErr(op, err)
	}
	return n, nil
}

func (q *queries) CountActiveMembers(ctx context.Context) (int64, error) {
	return q.count(ctx, "count active members", `SELECT COUNT(*) FROM members WHERE active = 1`)
}

func (q *queries) CountInvoicesForYear(ctx context.Context, year int) (int64, error) {
	return q.count(ctx, "count invoices for year",
		`SELECT COUNT(*) FROM invoices WHERE `+invoicedInYear, year, yearText(year))
}

func (q *queries) HouseholdOfMember(ctx context.Context, memberID int64) (int64, bool, error) {
	var householdID int64
	err := q.tx.QueryRowContext(ctx,
		`SELECT a.household_id FROM members m JOIN addresses a ON a.id = m.address_id WHERE m.id = ?`,
		memberID,
	).Scan(&householdID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageErr("get member household", err)
	}
	return householdID, true, nil
}

func (q *queries) HouseholdExists(ctx context.Context, householdID int64) (bool, error) {
	var exists bool
	err := q.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM households WHERE id = ?)`, householdID,
	).Scan(&exists)
	if err != nil {
		return false, storageErr("check household exists", err)
	}
	return exists, nil
}

func (q *queries) CountInvoiceLinesForMember(ctx context.Context, memberID int64) (int64, error) {
	return q.count(ctx, "count member invoice lines",
		`SELECT COUNT(*) FROM invoice_lines WHERE member_id = ?`, memberID)
}

func (q *queries) CountBillingHistoryForHousehold(ctx context.Context, householdID int64) (int64, error) {
	return q.count(ctx, "count household billing history",
		`SELECT (SELECT COUNT(*) FROM invoices WHERE household_id = ?)
		      + (SELECT COUNT(*) FROM invoice_lines il
		         JOIN members m ON m.id = il.member_id
		         JOIN addresses a ON a.id = m.address_id
		         WHERE a.household_id = ?)`,
		householdID, householdID)
}

func (q *queries) CountMembersInHousehold(ctx context.Context, householdID int64) (int64, error) {
	return q.count(ctx, "count household members",
		`SELECT COUNT(*) FROM members m JOIN addresses a ON a.id = m.address_id WHERE a.household_id = ?`,
		householdID)
}

func (q *queries) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	result, err := q.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return result, nil
}

func (q *queries) DeleteMemberRow(ctx context.Context, memberID int64) error {
	_, err := q.exec(ctx, "delete member", `DELETE FROM members WHERE id = ?`, memberID)
	return err
}

func (q *queries) DeleteMembersInHousehold(ctx context.Context, householdID int64) error {
	_, err := q.exec(ctx, "delete household members",
		`DELETE FROM members WHERE address_id IN (SELECT id FROM addresses WHERE household_id = ?)`,
		householdID)
	return err
}

func (q *queries) DeleteAddressRow(ctx context.Context, householdID int64) error {
	_, err := q.exec(ctx, "delete household address", `DELETE FROM addresses WHERE household_id = ?`, householdID)
	return err
}

func (q *queries) DeleteHouseholdRow(ctx context.Context, householdID int64) error {
	_, err := q.exec(ctx, "delete household", `DELETE FROM households WHERE id = ?`, householdID)
	return err
}

func (q *queries) GetInvoice(ctx context.Context, invoiceID int64) (*model.Invoice, error) {
	return getInvoice(ctx, q.tx, invoiceID)
}

func (q *queries) MarkInvoicePaid(ctx context.Context, invoiceID int64, paymentDate model.Date) (bool, error) {
	result, err := q.exec(ctx, "mark invoice paid",
		`UPDATE invoices SET paid = 1, payment_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		paymentDate.String(), invoiceID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, storageErr("rows affected", err)
	}
	return n > 0, nil
}

func (q *queries) DeleteInvoiceLines(ctx context.Context, invoiceID int64) error {
	_, err := q.exec(ctx, "delete invoice lines", `DELETE FROM invoice_lines WHERE invoice_id = ?`, invoiceID)
	return err
}

func (q *queries) DeleteInvoiceRow(ctx context.Context, invoiceID int64) error {
	_, err := q.exec(ctx, "delete invoice", `DELETE FROM invoices WHERE id = ?`, invoiceID)
	return err
}
