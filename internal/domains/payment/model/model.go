package model

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"lodge/shared/model"
)

const (
	TableName  = "payment_entries"
	EntityName = "payment"

	FieldID              = "id"
	FieldRentalID        = "rental_id"
	FieldAmount          = "amount"
	FieldMethod          = "method"
	FieldPayerName       = "payer_name"
	FieldReferenceNumber = "reference_number"
	FieldIdempotencyKey  = "idempotency_key"
	FieldStatus          = "status"
	FieldRecordedAt      = "recorded_at"
)

const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
	MethodQRCode   = "qr_code"
)

// Only settled entries are modeled; pending gateway flows live outside the
// engine.
const (
	StatusCompleted = "completed"
)

// PaymentEntry is append-only: corrections are new offsetting entries, never
// mutations of an existing row.
type PaymentEntry struct {
	ID              string          `db:"id"`
	RentalID        string          `db:"rental_id"`
	Amount          decimal.Decimal `db:"amount"`
	Method          string          `db:"method"`
	PayerName       string          `db:"payer_name"`
	ReferenceNumber sql.NullString  `db:"reference_number"`
	IdempotencyKey  string          `db:"idempotency_key"`
	Status          string          `db:"status"`
	RecordedAt      time.Time       `db:"recorded_at"`
	model.Metadata
}
