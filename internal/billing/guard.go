package billing

import (
	"context"
	"fmt"
)

// MemberDeletion describes what a member delete removed.
type MemberDeletion struct {
	MemberID         int64 `json:"member_id"`
	HouseholdID      int64 `json:"household_id"`
	HouseholdRemoved bool  `json:"household_removed"`
}

// DeleteMember deletes a member that has no invoice lines. When the member
// was the last one in its household, the household and its address are
// deleted in the same transaction.
func (e *Engine) DeleteMember(ctx context.Context, memberID int64) (*MemberDeletion, error) {
	var result *MemberDeletion
	err := e.sessions.Update(ctx, func(st Storage) error {
		householdID, found, err := st.HouseholdOfMember(ctx, memberID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: member %d", ErrNotFound, memberID)
		}

		lines, err := st.CountInvoiceLinesForMember(ctx, memberID)
		if err != nil {
			return err
		}
		if lines > 0 {
			e.recorder.DeletionRefused("member")
			return fmt.Errorf("%w: member %d appears on %d invoice lines; delete the invoices first",
				ErrReferentialIntegrity, memberID, lines)
		}

		if err := st.DeleteMemberRow(ctx, memberID); err != nil {
			return err
		}

		result = &MemberDeletion{MemberID: memberID, HouseholdID: householdID}
		remaining, err := st.CountMembersInHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		if err := st.DeleteAddressRow(ctx, householdID); err != nil {
			return err
		}
		if err := st.DeleteHouseholdRow(ctx, householdID); err != nil {
			return err
		}
		result.HouseholdRemoved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("member deleted", "member_id", memberID,
		"household_id", result.HouseholdID, "household_removed", result.HouseholdRemoved)
	return result, nil
}

// DeleteHousehold deletes a household with its members and address. Like
// DeleteMember it refuses while any invoice or invoice line still points
// into the household.
func (e *Engine) DeleteHousehold(ctx context.Context, householdID int64) error {
	err := e.sessions.Update(ctx, func(st Storage) error {
		exists, err := st.HouseholdExists(ctx, householdID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: household %d", ErrNotFound, householdID)
		}

		history, err := st.CountBillingHistoryForHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		if history > 0 {
			e.recorder.DeletionRefused("household")
			return fmt.Errorf("%w: household %d has billing history; delete its invoices first",
				ErrReferentialIntegrity, householdID)
		}

		if err := st.DeleteMembersInHousehold(ctx, householdID); err != nil {
			return err
		}
		if err := st.DeleteAddressRow(ctx, householdID); err != nil {
			return err
		}
		return st.DeleteHouseholdRow(ctx, householdID)
	})
	if err != nil {
		return err
	}

	e.logger.Info("household deleted", "household_id", householdID)
	return nil
}
