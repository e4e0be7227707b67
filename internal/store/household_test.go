package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/model"
)

func TestHouseholdListCountsMembers(t *testing.T) {
	ledger := setupTestLedger(t)
	ms := NewMemberStore(ledger)
	hs := NewHouseholdStore(ledger)
	ctx := context.Background()

	a := createHousehold(t, ms, "Aino", "Virtanen", model.MemberTypeRegular)
	joinHousehold(t, ms, a.Household.ID, "Eero", "Virtanen", model.MemberTypeRegular)
	createHousehold(t, ms, "Liisa", "Korhonen", model.MemberTypeHonorary)

	households, err := hs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(households) != 2 {
		t.Fatalf("len = %d, want 2", len(households))
	}
	if households[0].MemberCount != 2 {
		t.Errorf("member count = %d, want 2", households[0].MemberCount)
	}
	if households[1].MemberCount != 1 {
		t.Errorf("member count = %d, want 1", households[1].MemberCount)
	}
	if households[0].Address.City != "Helsinki" {
		t.Errorf("city = %q, want Helsinki", households[0].Address.City)
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs := NewHouseholdStore(setupTestLedger(t))

	h, err := hs.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for non-existent household")
	}
}

func TestHouseholdSetBillingAddress(t *testing.T) {
	ledger := setupTestLedger(t)
	ms := NewMemberStore(ledger)
	hs := NewHouseholdStore(ledger)
	ctx := context.Background()

	m := createHousehold(t, ms, "Aino", "Virtanen", model.MemberTypeRegular)
	hid := m.Household.ID

	h, err := hs.SetBillingAddress(ctx, hid, strPtr("Virtasen perhe"),
		&model.AddressInput{Street: "PL 12", PostalCode: "00101", City: "Helsinki"})
	if err != nil {
		t.Fatalf("set billing address: %v", err)
	}
	if h.Household.BillingAddressIsOwn {
		t.Error("expected separate billing address")
	}
	if h.Household.BillingAddressID == nil {
		t.Fatal("expected billing address id")
	}
	if h.Address.ID != m.Address.ID {
		t.Errorf("own address = %d, want %d", h.Address.ID, m.Address.ID)
	}

	h, err = hs.SetBillingAddress(ctx, hid, nil, nil)
	if err != nil {
		t.Fatalf("reset billing address: %v", err)
	}
	if !h.Household.BillingAddressIsOwn || h.Household.BillingAddressID != nil {
		t.Errorf("billing address not reset: %+v", h.Household)
	}

	if _, err := hs.SetBillingAddress(ctx, 999, nil, nil); !errors.Is(err, billing.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
