package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lodge/shared/failure"
	"lodge/shared/model"
)

const (
	TableName  = "rentals"
	EntityName = "rental"

	FieldID                 = "id"
	FieldPropertyID         = "property_id"
	FieldClientID           = "client_id"
	FieldRentalType         = "rental_type"
	FieldStartDate          = "start_date"
	FieldEndDate            = "end_date"
	FieldRate               = "rate"
	FieldTotalAmount        = "total_amount"
	FieldDeposit            = "deposit"
	FieldState              = "state"
	FieldCheckedInAt        = "checked_in_at"
	FieldCheckedOutAt       = "checked_out_at"
	FieldCancellationReason = "cancellation_reason"
)

// Lifecycle states. Transitions are monotonic: once a state is exited it is
// never re-entered, and checked_out/cancelled are terminal. Expired is a
// derived reporting status, never stored.
const (
	StatePendingCheckin = "pending_checkin"
	StateCheckedIn      = "checked_in"
	StateCheckedOut     = "checked_out"
	StateCancelled      = "cancelled"
	StateExpired        = "expired"
)

type Rental struct {
	ID                 string          `db:"id"`
	PropertyID         string          `db:"property_id"`
	ClientID           string          `db:"client_id"`
	RentalType         string          `db:"rental_type"`
	StartDate          time.Time       `db:"start_date"`
	EndDate            time.Time       `db:"end_date"`
	Rate               decimal.Decimal `db:"rate"`
	TotalAmount        decimal.Decimal `db:"total_amount"`
	Deposit            decimal.Decimal `db:"deposit"`
	State              string          `db:"state"`
	CheckedInAt        sql.NullTime    `db:"checked_in_at"`
	CheckedOutAt       sql.NullTime    `db:"checked_out_at"`
	CancellationReason sql.NullString  `db:"cancellation_reason"`
	model.Metadata
}

// Active reports whether the rental still occupies its property.
func (r *Rental) Active() bool {
	return r.State == StatePendingCheckin || r.State == StateCheckedIn
}

// EffectiveState is the reporting status at the given instant: an active
// rental past its end date reads as expired. Expiry never blocks a
// transition; guards look at the stored state only.
func (r *Rental) EffectiveState(now time.Time) string {
	if r.Active() && now.After(r.EndDate) {
		return StateExpired
	}

	return r.State
}

// EnsureCheckIn validates the pending_checkin -> checked_in transition.
func (r *Rental) EnsureCheckIn() error {
	if r.State == StatePendingCheckin {
		return nil
	}

	return failure.Conflict(failure.KindNotPendingCheckin, fmt.Sprintf("rental cannot be checked in (current state: %s)", r.State)) //nolint:wrapcheck
}

// EnsureCheckOut validates the checked_in -> checked_out transition.
func (r *Rental) EnsureCheckOut() error {
	if r.CheckedOutAt.Valid || r.State == StateCheckedOut {
		return failure.Conflict(failure.KindAlreadyCheckedOut, "rental has already been checked out") //nolint:wrapcheck
	}

	if r.State != StateCheckedIn {
		return failure.Conflict(failure.KindNotCheckedIn, fmt.Sprintf("rental cannot be checked out (current state: %s)", r.State)) //nolint:wrapcheck
	}

	return nil
}

// EnsureCancel validates cancellation from any active state.
func (r *Rental) EnsureCancel() error {
	if r.Active() {
		return nil
	}

	return failure.Conflict(failure.KindAlreadyTerminal, fmt.Sprintf("rental is already terminal (current state: %s)", r.State)) //nolint:wrapcheck
}

// EnsureExtend validates that the rental can still accrue duration.
func (r *Rental) EnsureExtend() error {
	if r.Active() {
		return nil
	}

	return failure.Conflict(failure.KindRentalNotActive, fmt.Sprintf("rental is not active (current state: %s)", r.State)) //nolint:wrapcheck
}
