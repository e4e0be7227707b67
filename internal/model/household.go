package model

import "time"

type Household struct {
	ID                  int64     `json:"id"`
	Name                *string   `json:"name,omitempty"`
	Addressee           *string   `json:"addressee,omitempty"`
	BillingAddressIsOwn bool      `json:"billing_address_is_own"`
	BillingAddressID    *int64    `json:"billing_address_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Address struct {
	ID          int64     `json:"id"`
	Street      string    `json:"street"`
	PostalCode  string    `json:"postal_code"`
	City        string    `json:"city"`
	HouseholdID int64     `json:"household_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HouseholdSummary is a household with its own address and member count.
type HouseholdSummary struct {
	Household   Household `json:"household"`
	Address     Address   `json:"address"`
	MemberCount int64     `json:"member_count"`
}

// AddressInput is a postal address as entered by a user.
type AddressInput struct {
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
}
