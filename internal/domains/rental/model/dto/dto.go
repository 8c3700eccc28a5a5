package dto

import (
	"time"

	"github.com/google/uuid"

	"lodge/internal/domains/rental/model"
	"lodge/internal/domains/rental/rate"
	"lodge/shared"
	gDto "lodge/shared/dto"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"
)

type QuoteRequest struct {
	PropertyID string `json:"property_id" validate:"required"`
	RentalType string `json:"rental_type" validate:"required,oneof=hourly daily weekly monthly yearly"`
	StartDate  string `json:"start_date"  validate:"required"`
	Duration   int    `json:"duration"    validate:"required,gt=0"`
}

func (q *QuoteRequest) Start() (time.Time, error) {
	return time.Parse(time.RFC3339, q.StartDate)
}

type QuoteResponse struct {
	PropertyID  string `json:"property_id"`
	RentalType  string `json:"rental_type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Rate        string `json:"rate"`
	TotalAmount string `json:"total_amount"`
	Deposit     string `json:"deposit"`
}

func (r *QuoteResponse) FromQuotation(req QuoteRequest, start time.Time, quotation rate.Quotation) {
	r.PropertyID = req.PropertyID
	r.RentalType = req.RentalType
	r.StartDate = start.Format(time.RFC3339)
	r.EndDate = quotation.EndDate.Format(time.RFC3339)
	r.Rate = quotation.Rate.String()
	r.TotalAmount = quotation.TotalAmount.String()
	r.Deposit = quotation.Deposit.String()
}

type CreateRentalRequest struct {
	PropertyID string `json:"property_id" validate:"required"`
	ClientID   string `json:"client_id"   validate:"required,max=100"`
	RentalType string `json:"rental_type" validate:"required,oneof=hourly daily weekly monthly yearly"`
	StartDate  string `json:"start_date"  validate:"required"`
	Duration   int    `json:"duration"    validate:"required,gt=0"`
}

func (c *CreateRentalRequest) Start() (time.Time, error) {
	return time.Parse(time.RFC3339, c.StartDate)
}

func (c *CreateRentalRequest) ToModel(start time.Time, quotation rate.Quotation, user string) model.Rental {
	return model.Rental{
		ID:          uuid.NewString(),
		PropertyID:  c.PropertyID,
		ClientID:    c.ClientID,
		RentalType:  c.RentalType,
		StartDate:   start,
		EndDate:     quotation.EndDate,
		Rate:        quotation.Rate,
		TotalAmount: quotation.TotalAmount,
		Deposit:     quotation.Deposit,
		State:       model.StatePendingCheckin,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type ExtendRentalRequest struct {
	ExtraDuration int `json:"extra_duration" validate:"required,gt=0"`
}

type CancelRentalRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type RentalResponse struct {
	ID                 string `json:"id"`
	PropertyID         string `json:"property_id"`
	ClientID           string `json:"client_id"`
	RentalType         string `json:"rental_type"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	Rate               string `json:"rate"`
	TotalAmount        string `json:"total_amount"`
	Deposit            string `json:"deposit"`
	State              string `json:"state"`
	CheckedInAt        string `json:"checked_in_at,omitempty"`
	CheckedOutAt       string `json:"checked_out_at,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	gDto.Metadata
}

// FromModel renders the rental with its effective state at `now`, so an
// active rental past its end date reads as expired without a write.
func (r *RentalResponse) FromModel(rental model.Rental, now time.Time) {
	r.ID = rental.ID
	r.PropertyID = rental.PropertyID
	r.ClientID = rental.ClientID
	r.RentalType = rental.RentalType
	r.StartDate = rental.StartDate.Format(time.RFC3339)
	r.EndDate = rental.EndDate.Format(time.RFC3339)
	r.Rate = rental.Rate.String()
	r.TotalAmount = rental.TotalAmount.String()
	r.Deposit = rental.Deposit.String()
	r.State = rental.EffectiveState(now)

	if rental.CheckedInAt.Valid {
		r.CheckedInAt = rental.CheckedInAt.Time.Format(time.RFC3339)
	}

	if rental.CheckedOutAt.Valid {
		r.CheckedOutAt = rental.CheckedOutAt.Time.Format(time.RFC3339)
	}

	r.CancellationReason = rental.CancellationReason.String
	r.Metadata.FromModel(rental.Metadata)
}

type GetRentalsResponse struct {
	Rentals   []RentalResponse `json:"rentals"`
	TotalPage int              `json:"total_page"`
	TotalData int              `json:"total_data"`
}

func (r *GetRentalsResponse) FromModels(models []model.Rental, now time.Time, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Rentals = make([]RentalResponse, len(models))
	for i, mod := range models {
		r.Rentals[i].FromModel(mod, now)
	}
}
