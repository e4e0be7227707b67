package billing

import (
	"context"
	"fmt"

	"github.com/dukerupert/laskutin/internal/model"
)

// MarkInvoicePaid records full payment of an invoice on paymentDate.
func (e *Engine) MarkInvoicePaid(ctx context.Context, invoiceID int64, paymentDate model.Date) (*model.Invoice, error) {
	var inv *model.Invoice
	err := e.sessions.Update(ctx, func(st Storage) error {
		ok, err := st.MarkInvoicePaid(ctx, invoiceID, paymentDate)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: invoice %d", ErrNotFound, invoiceID)
		}
		inv, err = st.GetInvoice(ctx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("invoice paid", "invoice_id", invoiceID, "payment_date", paymentDate.String())
	return inv, nil
}

// DeleteInvoice removes an invoice and its lines. The household becomes
// invoiceable again for the invoice's year.
func (e *Engine) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	err := e.sessions.Update(ctx, func(st Storage) error {
		inv, err := st.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: invoice %d", ErrNotFound, invoiceID)
		}
		if err := st.DeleteInvoiceLines(ctx, invoiceID); err != nil {
			return err
		}
		return st.DeleteInvoiceRow(ctx, invoiceID)
	})
	if err != nil {
		return err
	}

	e.logger.Info("invoice deleted", "invoice_id", invoiceID)
	return nil
}
