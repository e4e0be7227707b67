package billing

import (
	"fmt"
	"strings"

	"github.com/dukerupert/laskutin/internal/model"
	"github.com/shopspring/decimal"
)

var maxBarcodeAmount = decimal.RequireFromString("999999.99")

// Barcode builds a version 4 Finnish bank barcode:
// 4 | IBAN digits (16) | euros (6) | cents (2) | 000 | reference (20) | YYMMDD.
func Barcode(iban string, amountCents int64, reference string, due model.Date) (string, error) {
	iban = NormalizeIBAN(iban)
	if !ValidIBAN(iban) {
		return "", fmt.Errorf("%w: invalid IBAN", ErrValidation)
	}
	if !strings.HasPrefix(iban, "FI") || len(iban) != 18 {
		return "", fmt.Errorf("%w: version 4 barcode requires a Finnish IBAN", ErrValidation)
	}

	amount := decimal.New(amountCents, -2)
	if amount.IsNegative() {
		return "", fmt.Errorf("%w: amount is negative", ErrValidation)
	}
	if amount.GreaterThan(maxBarcodeAmount) {
		return "", fmt.Errorf("%w: amount %s exceeds %s", ErrValidation, amount.StringFixed(2), maxBarcodeAmount.StringFixed(2))
	}

	reference = strings.ReplaceAll(reference, " ", "")
	if !ValidReference(reference) {
		return "", fmt.Errorf("%w: invalid reference number %q", ErrValidation, reference)
	}

	euros := amount.IntPart()
	cents := amountCents % 100
	return fmt.Sprintf("4%s%06d%02d000%s%s%s",
		iban[2:], euros, cents,
		strings.Repeat("0", 20-len(reference)), reference,
		due.Format("060102"),
	), nil
}

// NormalizeIBAN strips spaces and upper-cases an IBAN.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}

// ValidIBAN checks the ISO 13616 mod-97 checksum of a normalized IBAN.
func ValidIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	remainder := 0
	for _, c := range rearranged {
		switch {
		case c >= '0' && c <= '9':
			remainder = (remainder*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			remainder = (remainder*100 + int(c-'A'+10)) % 97
		default:
			return false
		}
	}
	return remainder == 1
}
