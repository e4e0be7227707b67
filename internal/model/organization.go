package model

import "time"

type Organization struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Street     string    `json:"street"`
	PostalCode string    `json:"postal_code"`
	City       string    `json:"city"`
	Phone      *string   `json:"phone,omitempty"`
	Email      *string   `json:"email,omitempty"`
	BusinessID *string   `json:"business_id,omitempty"`
	IBAN       *string   `json:"iban,omitempty"`
	BIC        *string   `json:"bic,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
