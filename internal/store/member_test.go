package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

func TestMemberCreateWithNewHousehold(t *testing.T) {
	ms := NewMemberStore(setupTestLedger(t))

	m := createHousehold(t, ms, "Aino", "Virtanen", model.MemberTypeRegular)
	if m.Member.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if m.Household.ID == 0 {
		t.Error("expected household to be created")
	}
	if m.Address.HouseholdID != m.Household.ID {
		t.Errorf("address household = %d, want %d", m.Address.HouseholdID, m.Household.ID)
	}
	if m.Member.AddressID != m.Address.ID {
		t.Errorf("member address = %d, want %d", m.Member.AddressID, m.Address.ID)
	}
	if m.Member.JoinDate.String() != "2020-01-15" {
		t.Errorf("join date = %s, want 2020-01-15", m.Member.JoinDate)
	}
	if !m.Household.BillingAddressIsOwn {
		t.Error("new household should bill its own address")
	}
}

func TestMemberJoinExistingHousehold(t *testing.T) {
	ms := NewMemberStore(setupTestLedger(t))
	ctx := context.Background()

	first := createHousehold(t, ms, "Aino", "Virtanen", model.MemberTypeRegular)
	second := joinHousehold(t, ms, first.Household.ID, "Eero", "Virtanen", model.MemberTypeSupporting)

	if second.Household.ID != first.Household.ID {
		t.Errorf("household = %d, want %d", second.Household.ID, first.Household.ID)
	}
	if second.Member.AddressID != first.Member.AddressID {
		t.Errorf("address = %d, want shared %d", second.Member.AddressID, first.Member.AddressID)
	}

	members, err := ms.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len = %d, want 2", len(members))
	}
	// Ordered by last name, then first name.
	if members[0].Member.FirstName != "Aino" || members[1].Member.FirstName != "Eero" {
		t.Errorf("order = %s, %s", members[0].Member.FirstName, members[1].Member.FirstName)
	}
}

func TestMemberJoinUnknownHousehold(t *testing.T) {
	ms := NewMemberStore(setupTestLedger(t))

	missing := int64(999)
	_, err := ms.Create(context.Background(), MemberParams{
		FirstName:   "Aino",
		LastName:    "Virtanen",
		JoinDate:    mustDate(t, "2020-01-15"),
		MemberType:  model.MemberTypeRegular,
		Active:      true,
		HouseholdID: &missing,
	})
	if !errors.Is(err, billing.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemberCreateValidation(t *testing.T) {
	ms := NewMemberStore(setupTestLedger(t))
	hid := int64(1)

	tests := []struct {
		name string
		p    MemberParams
	}{
		{"missing name", MemberParams{LastName: "Virtanen", JoinDate: mustDate(t, "2020-01-01"), MemberType: model.MemberTypeRegular, HouseholdID: &hid}},
		{"unknown type", MemberParams{FirstName: "Aino", LastName: "Virtanen", JoinDate: mustDate(t, "2020-01-01"), MemberType: "gold", HouseholdID: &hid}},
		{"no household", MemberParams{FirstName: "Aino", LastName: "Virtanen", JoinDate: mustDate(t, "2020-01-01"), MemberType: model.MemberTypeRegular}},
		{"both households", MemberParams{FirstName: "Aino", LastName: "Virtanen", JoinDate: mustDate(t, "2020-01-01"), MemberType: model.MemberTypeRegular, HouseholdID: &hid, Household: &NewHousehold{}}},
		{"missing join date", MemberParams{FirstName: "Aino", LastName: "Virtanen", MemberType: model.MemberTypeRegular, HouseholdID: &hid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ms.Create(context.Background(), tt.p)
			if !errors.Is(err, billing.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestMemberCreateNewHouseholdRequiresAddress(t *testing.T) {
	ledger := setupTestLedger(t)
	ms := NewMemberStore(ledger)
	hs := NewHouseholdStore(ledger)
	ctx := context.Background()

	_, err := ms.Create(ctx, MemberParams{
		FirstName:  "Aino",
		LastName:   "Virtanen",
		JoinDate:   mustDate(t, "2020-01-15"),
		MemberType: model.MemberTypeRegular,
		Household:  &NewHousehold{Address: model.AddressInput{Street: "Kirkkokatu 1"}},
	})
	if !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	households, err := hs.List(ctx)
	if err != nil {
		t.Fatalf("list households: %v", err)
	}
	if len(households) != 0 {
		t.Errorf("household was left behind: %d rows", len(households))
	}
}

func TestMemberSetActive(t *testing.T) {
	ms := NewMemberStore(setupTestLedger(t))
	ctx := context.Background()

	m := createHousehold(t, ms, "Aino", "Virtanen", model.MemberTypeRegular)
	updated, err := ms.SetActive(ctx, m.Member.ID, false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if updated.Member.Active {
		t.Error("expected member to be inactive")
	}

	if _, err := ms.SetActive(ctx, 999, true); !errors.Is(err, billing.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemberGetByIDNotFound(t *testing.T) {
	ms := NewMemberStore(setupTestLedger(t))

	m, err := ms.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if m != nil {
		t.Error("expected nil for non-existent member")
	}
}
