package billing

import (
	"errors"
	"testing"

	"github.com/dukerupert/laskutin/internal/model"
)

func mustParseDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func TestBarcode(t *testing.T) {
	got, err := Barcode("FI79 4405 2020 0360 82", 488315, "868516259619897", mustParseDate(t, "2010-06-12"))
	if err != nil {
		t.Fatalf("Barcode: %v", err)
	}
	want := "479440520200360820048831500000000868516259619897100612"
	if got != want {
		t.Errorf("Barcode =\n%s\nwant\n%s", got, want)
	}
	if len(got) != 54 {
		t.Errorf("len = %d, want 54", len(got))
	}
}

func TestBarcodeRejects(t *testing.T) {
	due := mustParseDate(t, "2024-03-31")
	tests := []struct {
		name   string
		iban   string
		amount int64
		ref    string
	}{
		{"bad iban checksum", "FI00 4405 2020 0360 82", 100, "202400055"},
		{"foreign iban", "DE89 3704 0044 0532 0130 00", 100, "202400055"},
		{"negative amount", "FI79 4405 2020 0360 82", -1, "202400055"},
		{"amount too large", "FI79 4405 2020 0360 82", 100000000, "202400055"},
		{"bad reference", "FI79 4405 2020 0360 82", 100, "202400054"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Barcode(tt.iban, tt.amount, tt.ref, due); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestValidIBAN(t *testing.T) {
	if !ValidIBAN(NormalizeIBAN("fi79 4405 2020 0360 82")) {
		t.Error("expected valid Finnish IBAN")
	}
	if !ValidIBAN("DE89370400440532013000") {
		t.Error("expected valid German IBAN")
	}
	if ValidIBAN("FI7944052020036083") {
		t.Error("expected checksum failure")
	}

	// Letters inside the account part expand to two digits each.
	for _, iban := range []string{"GB82WEST12345698765432", "MT84MALT011000012345MTLCAST001S"} {
		if !ValidIBAN(iban) {
			t.Errorf("expected %s to be valid", iban)
		}
	}
	if ValidIBAN("GB82WEST12345698765433") {
		t.Error("expected checksum failure for altered GB IBAN")
	}
	if ValidIBAN("FI79-4405-2020-0360-82") {
		t.Error("expected rejection of separators")
	}
}
