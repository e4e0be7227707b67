package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/laskutin/internal/model"
)

// householdBill is what one household owes for a year.
type householdBill struct {
	HouseholdID int64
	Members     []BillableMember
	TotalCents  int64
}

// groupByHousehold groups members by household, keeping first-seen order.
func groupByHousehold(members []BillableMember) []householdBill {
	index := make(map[int64]int)
	var bills []householdBill
	for _, m := range members {
		i, ok := index[m.HouseholdID]
		if !ok {
			i = len(bills)
			index[m.HouseholdID] = i
			bills = append(bills, householdBill{HouseholdID: m.HouseholdID})
		}
		bills[i].Members = append(bills[i].Members, m)
		bills[i].TotalCents += m.FeeCents
	}
	return bills
}

// pendingHouseholds returns the households that would get a new invoice for
// year when it is created in createdYear: they have active members with a
// resolvable fee, no invoice for the year, none created in createdYear, and a
// positive total. invoiced counts the billable households skipped because of
// an existing invoice. Validate and GenerateForYear both use it.
func pendingHouseholds(ctx context.Context, st Storage, year, createdYear int) (pending []householdBill, invoiced int, err error) {
	members, err := st.ActiveMembersWithFee(ctx, year)
	if err != nil {
		return nil, 0, err
	}

	for _, bill := range groupByHousehold(members) {
		if bill.TotalCents <= 0 {
			continue
		}
		exists, err := st.InvoiceExistsForHouseholdYear(ctx, bill.HouseholdID, year, createdYear)
		if err != nil {
			return nil, 0, err
		}
		if exists {
			invoiced++
			continue
		}
		pending = append(pending, bill)
	}
	return pending, invoiced, nil
}

// GenerateForYear creates one invoice per pending household for year. Each
// household's invoice and lines are written in their own transaction; a
// failure leaves earlier households invoiced, and a re-run picks up the rest.
func (e *Engine) GenerateForYear(ctx context.Context, year int) (invoices []model.Invoice, err error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { e.recorder.ObserveRun("generate", time.Since(start), err) }()

	today := model.NewDate(e.now())
	var candidates []householdBill
	if err := e.sessions.View(ctx, func(st Storage) error {
		var err error
		candidates, _, err = pendingHouseholds(ctx, st, year, today.Year())
		return err
	}); err != nil {
		return nil, err
	}

	created := make([]model.Invoice, 0, len(candidates))
	var total int64
	for _, c := range candidates {
		var inv *model.Invoice
		err := e.sessions.Update(ctx, func(st Storage) error {
			var err error
			inv, err = invoiceHousehold(ctx, st, year, c.HouseholdID, today)
			return err
		})
		if err != nil {
			e.logger.Error("invoice generation stopped",
				"year", year, "household_id", c.HouseholdID, "created", len(created), "error", err)
			return nil, fmt.Errorf("invoice household %d: %w", c.HouseholdID, err)
		}
		if inv != nil {
			created = append(created, *inv)
			total += inv.AmountCents
		}
	}

	e.recorder.InvoicesCreated(year, len(created), total)
	e.logger.Info("invoices generated", "year", year, "count", len(created), "amount_cents", total)
	return created, nil
}

// invoiceHousehold re-reads the household inside the write transaction so a
// concurrent run or a member change since planning cannot produce a
// duplicate or stale invoice. It returns nil when there is nothing to bill.
func invoiceHousehold(ctx context.Context, st Storage, year int, householdID int64, today model.Date) (*model.Invoice, error) {
	exists, err := st.InvoiceExistsForHouseholdYear(ctx, householdID, year, today.Year())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	members, err := st.HouseholdMembersWithFee(ctx, householdID, year)
	if err != nil {
		return nil, err
	}
	bills := groupByHousehold(members)
	if len(bills) == 0 || bills[0].TotalCents <= 0 {
		return nil, nil
	}
	bill := bills[0]

	ref, err := householdReference(year, householdID)
	if err != nil {
		return nil, err
	}
	number := invoiceNumber(year, householdID)

	inv := &model.Invoice{
		HouseholdID:     householdID,
		BillingYear:     year,
		CreatedDate:     today,
		DueDate:         today.AddDays(paymentTermDays),
		AmountCents:     bill.TotalCents,
		ReferenceNumber: ref,
		InvoiceNumber:   &number,
	}
	inv.ID, err = st.InsertInvoice(ctx, inv)
	if err != nil {
		return nil, err
	}

	for _, m := range bill.Members {
		line := &model.InvoiceLine{
			InvoiceID:   inv.ID,
			MemberID:    m.MemberID,
			Description: fmt.Sprintf("Membership fee %d - %s", year, m.Label()),
			AmountCents: m.FeeCents,
		}
		if _, err := st.InsertInvoiceLine(ctx, line); err != nil {
			return nil, err
		}
	}

	return st.GetInvoice(ctx, inv.ID)
}
