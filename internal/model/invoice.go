package model

import "time"

type Invoice struct {
	ID              int64     `json:"id"`
	HouseholdID     int64     `json:"household_id"`
	BillingYear     int       `json:"billing_year"`
	CreatedDate     Date      `json:"created_date"`
	DueDate         Date      `json:"due_date"`
	AmountCents     int64     `json:"amount_cents"`
	ReferenceNumber string    `json:"reference_number"`
	InvoiceNumber   *string   `json:"invoice_number,omitempty"`
	Paid            bool      `json:"paid"`
	PaymentDate     *Date     `json:"payment_date,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type InvoiceLine struct {
	ID          int64     `json:"id"`
	InvoiceID   int64     `json:"invoice_id"`
	MemberID    int64     `json:"member_id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

type InvoiceLineWithMember struct {
	Line   InvoiceLine `json:"line"`
	Member Member      `json:"member"`
}

// InvoiceDetail is an invoice with everything needed to print it.
type InvoiceDetail struct {
	Invoice        Invoice                 `json:"invoice"`
	Household      Household               `json:"household"`
	Address        Address                 `json:"address"`
	BillingAddress *Address                `json:"billing_address,omitempty"`
	Lines          []InvoiceLineWithMember `json:"lines"`
	Barcode        string                  `json:"barcode,omitempty"`
}

// Stats summarizes the ledger for the dashboard.
type Stats struct {
	ActiveMembers    int64 `json:"active_members"`
	OpenInvoices     int64 `json:"open_invoices"`
	ReceivablesCents int64 `json:"receivables_cents"`
	YearlyIncome     int64 `json:"yearly_income_cents"`
	Year             int   `json:"year"`
}
