package dto

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lodge/internal/domains/payment/model"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"
)

type AcceptPaymentRequest struct {
	RentalID        string `json:"rental_id"        validate:"required"`
	Amount          string `json:"amount"           validate:"required,dec_gt_zero"`
	Method          string `json:"method"           validate:"required,oneof=cash card transfer qr_code"`
	PayerName       string `json:"payer_name"       validate:"required,max=100"`
	ReferenceNumber string `json:"reference_number" validate:"omitempty,max=100"`
	// IdempotencyKey is client generated; retries of the same logical
	// payment must reuse it. Populated from the Idempotency-Key header by
	// the handler when absent from the body.
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=100"`
}

// AmountDecimal parses the amount string. Validation has already confirmed it
// is a positive decimal.
func (a *AcceptPaymentRequest) AmountDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return decimal.Zero
	}

	return d
}

func (a *AcceptPaymentRequest) ToModel(user string) model.PaymentEntry {
	return model.PaymentEntry{
		ID:        uuid.NewString(),
		RentalID:  a.RentalID,
		Amount:    a.AmountDecimal(),
		Method:    a.Method,
		PayerName: a.PayerName,
		ReferenceNumber: sql.NullString{
			String: a.ReferenceNumber,
			Valid:  a.ReferenceNumber != "",
		},
		IdempotencyKey: a.IdempotencyKey,
		Status:         model.StatusCompleted,
		RecordedAt:     timezone.Now(),
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type PaymentEntryResponse struct {
	ID              string `json:"id"`
	RentalID        string `json:"rental_id"`
	Amount          string `json:"amount"`
	Method          string `json:"method"`
	PayerName       string `json:"payer_name"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Status          string `json:"status"`
	RecordedAt      string `json:"recorded_at"`
	gDto.Metadata
}

func (r *PaymentEntryResponse) FromModel(entry model.PaymentEntry) {
	r.ID = entry.ID
	r.RentalID = entry.RentalID
	r.Amount = entry.Amount.String()
	r.Method = entry.Method
	r.PayerName = entry.PayerName
	r.ReferenceNumber = entry.ReferenceNumber.String
	r.Status = entry.Status
	r.RecordedAt = timezone.Format(entry.RecordedAt, constant.DateFormat)
	r.Metadata.FromModel(entry.Metadata)
}

type GetPaymentEntriesResponse struct {
	Entries   []PaymentEntryResponse `json:"entries"`
	TotalData int                    `json:"total_data"`
}

func (r *GetPaymentEntriesResponse) FromModels(models []model.PaymentEntry) {
	r.TotalData = len(models)

	r.Entries = make([]PaymentEntryResponse, len(models))
	for i, mod := range models {
		r.Entries[i].FromModel(mod)
	}
}

// PaymentStatus is derived from the entry list, never stored.
type PaymentStatus struct {
	RentalID             string `json:"rental_id"`
	TotalAmount          string `json:"total_amount"`
	PaidAmount           string `json:"paid_amount"`
	OutstandingAmount    string `json:"outstanding_amount"`
	CompletionPercentage string `json:"completion_percentage"`
	IsFullyPaid          bool   `json:"is_fully_paid"`

	paid  decimal.Decimal
	total decimal.Decimal
}

const percentagePrecision = 2

// NewPaymentStatus derives the read model from the rental total and the sum
// of accepted entries. Outstanding floors at zero and the percentage is zero
// when the total is zero.
func NewPaymentStatus(rentalID string, total, paid decimal.Decimal) PaymentStatus {
	outstanding := total.Sub(paid)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}

	percentage := decimal.Zero
	if total.IsPositive() {
		percentage = paid.Mul(decimal.NewFromInt(100)).DivRound(total, percentagePrecision)
	}

	return PaymentStatus{
		RentalID:             rentalID,
		TotalAmount:          total.String(),
		PaidAmount:           paid.String(),
		OutstandingAmount:    outstanding.String(),
		CompletionPercentage: percentage.String(),
		IsFullyPaid:          paid.GreaterThanOrEqual(total),

		paid:  paid,
		total: total,
	}
}

// Paid exposes the exact paid sum for policy checks.
func (s PaymentStatus) Paid() decimal.Decimal {
	return s.paid
}

// Outstanding exposes the exact outstanding amount (floored at zero).
func (s PaymentStatus) Outstanding() decimal.Decimal {
	outstanding := s.total.Sub(s.paid)
	if outstanding.IsNegative() {
		return decimal.Zero
	}

	return outstanding
}
