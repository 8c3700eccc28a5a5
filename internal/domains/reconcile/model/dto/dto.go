package dto

import (
	"time"

	paymentDto "lodge/internal/domains/payment/model/dto"
	propertyDto "lodge/internal/domains/property/model/dto"
	rentalDto "lodge/internal/domains/rental/model/dto"
)

// ReconciliationView is the composite read of a rental: the rental itself
// with its effective state, the property it occupies, and the derived payment
// status. Assembled in one place so the three never drift apart in handlers.
type ReconciliationView struct {
	Rental   rentalDto.RentalResponse     `json:"rental"`
	Property propertyDto.PropertyResponse `json:"property"`
	Payment  paymentDto.PaymentStatus     `json:"payment"`
}

// RentalLifecycleEvent is published after a lifecycle transition commits.
type RentalLifecycleEvent struct {
	RentalID   string `json:"rental_id"`
	PropertyID string `json:"property_id"`
	State      string `json:"state"`
	OccurredAt string `json:"occurred_at"`
}

func NewRentalLifecycleEvent(rentalID, propertyID, state string, at time.Time) RentalLifecycleEvent {
	return RentalLifecycleEvent{
		RentalID:   rentalID,
		PropertyID: propertyID,
		State:      state,
		OccurredAt: at.Format(time.RFC3339),
	}
}

// PaymentAcceptedEvent is published after a payment entry commits.
type PaymentAcceptedEvent struct {
	RentalID    string `json:"rental_id"`
	Amount      string `json:"amount"`
	PaidAmount  string `json:"paid_amount"`
	Outstanding string `json:"outstanding_amount"`
	IsFullyPaid bool   `json:"is_fully_paid"`
	OccurredAt  string `json:"occurred_at"`
}
