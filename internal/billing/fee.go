package billing

import (
	"context"
	"fmt"

	"github.com/dukerupert/laskutin/internal/model"
)

// ResolveFee returns the fee in cents for a member type in a given year.
// There is no fallback to other years.
func ResolveFee(ctx context.Context, st Storage, year int, memberType model.MemberType) (int64, error) {
	amount, err := st.FeeFor(ctx, year, memberType)
	if err != nil {
		return 0, err
	}
	if amount == nil {
		return 0, fmt.Errorf("%w: no membership fee for %s in %d", ErrNotFound, memberType, year)
	}
	return *amount, nil
}
