package model

import "time"

// MembershipFee is the yearly fee of one member type, unique per (Year, MemberType).
type MembershipFee struct {
	ID          int64      `json:"id"`
	Year        int        `json:"year"`
	MemberType  MemberType `json:"member_type"`
	AmountCents int64      `json:"amount_cents"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
