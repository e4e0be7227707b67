package store

import (
	"context"
	"database/sql"

	"github.com/dukerupert/laskutin/internal/model"
)

const invoiceCols = `i.id, i.household_id, i.billing_year, i.created_date, i.due_date, i.amount_cents,
	i.reference_number, i.invoice_number, i.paid, i.payment_date, i.created_at, i.updated_at`

func scanInvoice(s scanner) (*model.Invoice, error) {
	var inv model.Invoice
	var created, due string
	var paymentDate sql.NullString
	err := s.Scan(&inv.ID, &inv.HouseholdID, &inv.BillingYear, &created, &due, &inv.AmountCents,
		&inv.ReferenceNumber, &inv.InvoiceNumber, &inv.Paid, &paymentDate, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if inv.CreatedDate, err = parseDate(created); err != nil {
		return nil, err
	}
	if inv.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if inv.PaymentDate, err = parseNullDate(paymentDate); err != nil {
		return nil, err
	}
	return &inv, nil
}

func getInvoice(ctx context.Context, q querier, id int64) (*model.Invoice, error) {
	row := q.QueryRowContext(ctx, `SELECT `+invoiceCols+` FROM invoices i WHERE i.id = ?`, id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get invoice", err)
	}
	return inv, nil
}

// InvoiceStore serves the invoice read models. Writes go through the
// billing engine.
type InvoiceStore struct {
	ledger *Ledger
}

func NewInvoiceStore(ledger *Ledger) *InvoiceStore {
	return &InvoiceStore{ledger: ledger}
}

// List returns the invoices billing year, or every invoice when year is 0.
func (s *InvoiceStore) List(ctx context.Context, year int) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceCols + ` FROM invoices i`
	var args []any
	if year != 0 {
		query += ` WHERE ` + invoicedInYear
		args = append(args, year, yearText(year))
	}
	query += ` ORDER BY i.billing_year DESC, i.household_id`

	var invoices []model.Invoice
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return storageErr("list invoices", err)
		}
		defer rows.Close()

		for rows.Next() {
			inv, err := scanInvoice(rows)
			if err != nil {
				return storageErr("scan invoice", err)
			}
			invoices = append(invoices, *inv)
		}
		if err := rows.Err(); err != nil {
			return storageErr("iterate invoices", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *InvoiceStore) GetByID(ctx context.Context, id int64) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		var err error
		inv, err = getInvoice(ctx, tx, id)
		return err
	})
	return inv, err
}

// Detail returns the invoice with its household, addresses and lines, or
// nil when the invoice does not exist.
func (s *InvoiceStore) Detail(ctx context.Context, id int64) (*model.InvoiceDetail, error) {
	var detail *model.InvoiceDetail
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		inv, err := getInvoice(ctx, tx, id)
		if err != nil || inv == nil {
			return err
		}

		h, err := getHousehold(ctx, tx, inv.HouseholdID)
		if err != nil {
			return err
		}
		if h == nil {
			return storageErr("get invoice household", sql.ErrNoRows)
		}
		addr, err := householdAddress(ctx, tx, h.ID)
		if err != nil {
			return err
		}
		if addr == nil {
			return storageErr("get invoice address", sql.ErrNoRows)
		}

		d := &model.InvoiceDetail{Invoice: *inv, Household: *h, Address: *addr}
		if !h.BillingAddressIsOwn && h.BillingAddressID != nil {
			if d.BillingAddress, err = getAddress(ctx, tx, *h.BillingAddressID); err != nil {
				return err
			}
		}
		if d.Lines, err = invoiceLines(ctx, tx, id); err != nil {
			return err
		}
		detail = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func invoiceLines(ctx context.Context, q querier, invoiceID int64) ([]model.InvoiceLineWithMember, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT il.id, il.invoice_id, il.member_id, il.description, il.amount_cents, il.created_at, `+memberCols+`
		 FROM invoice_lines il
		 JOIN members m ON m.id = il.member_id
		 WHERE il.invoice_id = ?
		 ORDER BY il.id`, invoiceID)
	if err != nil {
		return nil, storageErr("list invoice lines", err)
	}
	defer rows.Close()

	lines := []model.InvoiceLineWithMember{}
	for rows.Next() {
		var l model.InvoiceLineWithMember
		dest := []any{&l.Line.ID, &l.Line.InvoiceID, &l.Line.MemberID, &l.Line.Description, &l.Line.AmountCents, &l.Line.CreatedAt}
		m, err := scanMemberWith(rows, dest...)
		if err != nil {
			return nil, storageErr("scan invoice line", err)
		}
		l.Member = *m
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate invoice lines", err)
	}
	return lines, nil
}

// Stats summarizes members and receivables. Yearly income is the sum of
// invoices paid during year.
func (s *InvoiceStore) Stats(ctx context.Context, year int) (*model.Stats, error) {
	st := &model.Stats{Year: year}
	err := s.ledger.read(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE active = 1`).Scan(&st.ActiveMembers)
		if err != nil {
			return storageErr("count active members", err)
		}
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(amount_cents), 0) FROM invoices WHERE paid = 0`,
		).Scan(&st.OpenInvoices, &st.ReceivablesCents)
		if err != nil {
			return storageErr("sum open invoices", err)
		}
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(amount_cents), 0) FROM invoices
			 WHERE paid = 1 AND substr(payment_date, 1, 4) = ?`, yearText(year),
		).Scan(&st.YearlyIncome)
		if err != nil {
			return storageErr("sum yearly income", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
