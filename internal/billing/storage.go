package billing

import (
	"context"

	"github.com/dukerupert/laskutin/internal/model"
)

// BillableMember is an active member joined to its household and the fee
// resolved for the billing year.
type BillableMember struct {
	MemberID    int64
	HouseholdID int64
	FirstName   string
	LastName    string
	MemberType  model.MemberType
	FeeCents    int64
}

// Label names the member on an invoice line.
func (m BillableMember) Label() string {
	name := model.Member{FirstName: m.FirstName, LastName: m.LastName}.FullName()
	if name == "" {
		return m.MemberType.String()
	}
	return name
}

// Storage is the set of queries the billing engine runs inside one
// transaction. Lookups that find nothing return nil or false, not an error.
type Storage interface {
	ActiveMembersWithFee(ctx context.Context, year int) ([]BillableMember, error)
	HouseholdMembersWithFee(ctx context.Context, householdID int64, year int) ([]BillableMember, error)
	FeeFor(ctx context.Context, year int, memberType model.MemberType) (*int64, error)
	// InvoiceExistsForHouseholdYear reports whether the household has an
	// invoice billing year, or one created in year or in createdYear.
	InvoiceExistsForHouseholdYear(ctx context.Context, householdID int64, year, createdYear int) (bool, error)
	InsertInvoice(ctx context.Context, inv *model.Invoice) (int64, error)
	InsertInvoiceLine(ctx context.Context, line *model.InvoiceLine) (int64, error)

	ActiveMemberTypes(ctx context.Context) ([]model.MemberType, error)
	CountActiveMembers(ctx context.Context) (int64, error)
	CountInvoicesForYear(ctx context.Context, year int) (int64, error)

	HouseholdOfMember(ctx context.Context, memberID int64) (householdID int64, found bool, err error)
	HouseholdExists(ctx context.Context, householdID int64) (bool, error)
	CountInvoiceLinesForMember(ctx context.Context, memberID int64) (int64, error)
	CountBillingHistoryForHousehold(ctx context.Context, householdID int64) (int64, error)
	CountMembersInHousehold(ctx context.Context, householdID int64) (int64, error)
	DeleteMemberRow(ctx context.Context, memberID int64) error
	DeleteMembersInHousehold(ctx context.Context, householdID int64) error
	DeleteAddressRow(ctx context.Context, householdID int64) error
	DeleteHouseholdRow(ctx context.Context, householdID int64) error

	GetInvoice(ctx context.Context, invoiceID int64) (*model.Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID int64, paymentDate model.Date) (bool, error)
	DeleteInvoiceLines(ctx context.Context, invoiceID int64) error
	DeleteInvoiceRow(ctx context.Context, invoiceID int64) error
}

// Sessions hands out Storage bound to a transaction. Implementations
// serialize all sessions and roll back when fn returns an error.
type Sessions interface {
	View(ctx context.Context, fn func(Storage) error) error
	Update(ctx context.Context, fn func(Storage) error) error
}
