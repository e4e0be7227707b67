package store

import (
	"context"
	"testing"

	"github.com/dukerupert/laskutin/internal/database"
	"github.com/dukerupert/laskutin/internal/model"
)

func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLedger(db)
}

func strPtr(s string) *string { return &s }

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

// createHousehold creates a household with one member and returns the member.
func createHousehold(t *testing.T, ms *MemberStore, first, last string, mt model.MemberType) *model.MemberWithHousehold {
	t.Helper()
	m, err := ms.Create(context.Background(), MemberParams{
		FirstName:  first,
		LastName:   last,
		JoinDate:   mustDate(t, "2020-01-15"),
		MemberType: mt,
		Active:     true,
		Household: &NewHousehold{
			Name:    strPtr(last),
			Address: model.AddressInput{Street: "Kirkkokatu 1", PostalCode: "00100", City: "Helsinki"},
		},
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func joinHousehold(t *testing.T, ms *MemberStore, householdID int64, first, last string, mt model.MemberType) *model.MemberWithHousehold {
	t.Helper()
	m, err := ms.Create(context.Background(), MemberParams{
		FirstName:   first,
		LastName:    last,
		JoinDate:    mustDate(t, "2021-03-01"),
		MemberType:  mt,
		Active:      true,
		HouseholdID: &householdID,
	})
	if err != nil {
		t.Fatalf("join household: %v", err)
	}
	return m
}
