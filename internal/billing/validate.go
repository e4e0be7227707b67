package billing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/laskutin/internal/model"
)

// Validation is the outcome of a successful pre-flight check.
type Validation struct {
	Year          int    `json:"year"`
	Pending       int    `json:"pending"`
	Existing      int64  `json:"existing"`
	ActiveMembers int64  `json:"active_members"`
	Message       string `json:"message"`
}

// Validate checks that invoices can be generated for year and reports how
// many would be created. It only reads. Failures wrap ErrValidation.
func (e *Engine) Validate(ctx context.Context, year int) (v *Validation, err error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { e.recorder.ObserveRun("validate", time.Since(start), err) }()

	err = e.sessions.View(ctx, func(st Storage) error {
		var err error
		v, err = validate(ctx, st, year, e.now().Year())
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func validate(ctx context.Context, st Storage, year, createdYear int) (*Validation, error) {
	types, err := st.ActiveMemberTypes(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(types, func(a, b model.MemberType) int {
		return slices.Index(model.MemberTypes, a) - slices.Index(model.MemberTypes, b)
	})

	var missing []string
	for _, t := range types {
		if _, err := ResolveFee(ctx, st, year, t); err != nil {
			if errors.Is(err, ErrNotFound) {
				missing = append(missing, t.String())
				continue
			}
			return nil, err
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: membership fees for %d are missing for member types: %s; define them before creating invoices",
			ErrValidation, year, strings.Join(missing, ", "))
	}

	active, err := st.CountActiveMembers(ctx)
	if err != nil {
		return nil, err
	}
	if active == 0 {
		return nil, fmt.Errorf("%w: no active members to invoice", ErrValidation)
	}

	pending, invoiced, err := pendingHouseholds(ctx, st, year, createdYear)
	if err != nil {
		return nil, err
	}
	existing, err := st.CountInvoicesForYear(ctx, year)
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		if existing > 0 {
			return nil, fmt.Errorf("%w: invoices for %d have already been created: %d invoices exist",
				ErrValidation, year, existing)
		}
		if invoiced > 0 {
			return nil, fmt.Errorf("%w: %d households already have an invoice created in %d; a household is invoiced at most once per calendar year",
				ErrValidation, invoiced, createdYear)
		}
		return nil, fmt.Errorf("%w: no billable members for %d", ErrValidation, year)
	}

	v := &Validation{
		Year:          year,
		Pending:       len(pending),
		Existing:      existing,
		ActiveMembers: active,
	}
	if existing > 0 {
		v.Message = fmt.Sprintf("Ready to create %d new invoices for %d. %d invoices already exist; only households without an invoice will be billed.",
			v.Pending, year, existing)
	} else {
		v.Message = fmt.Sprintf("Ready to create %d invoices for %d active members for %d.", v.Pending, active, year)
	}
	return v, nil
}
