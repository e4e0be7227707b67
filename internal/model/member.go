package model

import (
	"fmt"
	"strings"
	"time"
)

// MemberType determines the fee tier of a member.
type MemberType string

const (
	MemberTypeRegular    MemberType = "regular"
	MemberTypeSupporting MemberType = "supporting"
	MemberTypeHonorary   MemberType = "honorary"
)

// MemberTypes lists every member type in display order.
var MemberTypes = []MemberType{MemberTypeRegular, MemberTypeSupporting, MemberTypeHonorary}

// ParseMemberType parses a member type, rejecting unknown values.
func ParseMemberType(s string) (MemberType, error) {
	switch t := MemberType(strings.ToLower(strings.TrimSpace(s))); t {
	case MemberTypeRegular, MemberTypeSupporting, MemberTypeHonorary:
		return t, nil
	}
	return "", fmt.Errorf("unknown member type %q", s)
}

func (t MemberType) Valid() bool {
	_, err := ParseMemberType(string(t))
	return err == nil
}

func (t MemberType) String() string { return string(t) }

type Member struct {
	ID         int64      `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	NationalID *string    `json:"national_id,omitempty"`
	BirthDate  *Date      `json:"birth_date,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Email      *string    `json:"email,omitempty"`
	AddressID  int64      `json:"address_id"`
	JoinDate   Date       `json:"join_date"`
	MemberType MemberType `json:"member_type"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FullName returns "First Last" with blank parts dropped.
func (m Member) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
}

// MemberWithHousehold is a member joined to its address and household.
type MemberWithHousehold struct {
	Member    Member    `json:"member"`
	Address   Address   `json:"address"`
	Household Household `json:"household"`
}
