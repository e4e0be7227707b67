package billing

import (
	"fmt"
	"strings"
)

var referenceWeights = [3]int{7, 3, 1}

// CheckDigit computes the Finnish creditor reference check digit of a digit
// string: digits are weighted 7, 3, 1 repeating from the rightmost one.
func CheckDigit(base string) (int, error) {
	if base == "" {
		return 0, fmt.Errorf("%w: empty reference base", ErrParse)
	}
	sum := 0
	for i := 0; i < len(base); i++ {
		c := base[len(base)-1-i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: reference base %q contains a non-digit", ErrParse, base)
		}
		sum += int(c-'0') * referenceWeights[i%3]
	}
	return (10 - sum%10) % 10, nil
}

// ReferenceNumber appends the check digit to base.
func ReferenceNumber(base string) (string, error) {
	check, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", base, check), nil
}

// ValidReference reports whether ref (spaces allowed) is a 4 to 20 digit
// reference whose last digit is the check digit of the rest.
func ValidReference(ref string) bool {
	ref = strings.ReplaceAll(ref, " ", "")
	if len(ref) < 4 || len(ref) > 20 {
		return false
	}
	check, err := CheckDigit(ref[:len(ref)-1])
	if err != nil {
		return false
	}
	return int(ref[len(ref)-1]-'0') == check
}

// householdReference builds the reference of a household's invoice for a
// year from the base {year}{household id padded to 5 digits}. It is stable,
// so re-running a year never hands out a different reference.
func householdReference(year int, householdID int64) (string, error) {
	return ReferenceNumber(fmt.Sprintf("%04d%05d", year, householdID))
}

func invoiceNumber(year int, householdID int64) string {
	return fmt.Sprintf("%d-%03d", year, householdID)
}
