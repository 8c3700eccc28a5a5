package model

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"lodge/internal/domains/rental/rate"
	"lodge/shared/failure"
	"lodge/shared/model"
)

const (
	TableName  = "properties"
	EntityName = "property"

	FieldID          = "id"
	FieldName        = "name"
	FieldFloor       = "floor"
	FieldHourlyRate  = "hourly_rate"
	FieldDailyRate   = "daily_rate"
	FieldWeeklyRate  = "weekly_rate"
	FieldMonthlyRate = "monthly_rate"
	FieldYearlyRate  = "yearly_rate"
	FieldStatus      = "status"
	FieldRentalID    = "rental_id"
)

// Occupancy statuses. Occupied is entered only by binding a rental; the
// others are workflow statuses that require the property to be unbound.
const (
	StatusAvailable   = "available"
	StatusOccupied    = "occupied"
	StatusMaintenance = "maintenance"
	StatusCleaning    = "cleaning"
)

type Property struct {
	ID          string              `db:"id"`
	Name        string              `db:"name"`
	Floor       int                 `db:"floor"`
	HourlyRate  decimal.NullDecimal `db:"hourly_rate"`
	DailyRate   decimal.NullDecimal `db:"daily_rate"`
	WeeklyRate  decimal.NullDecimal `db:"weekly_rate"`
	MonthlyRate decimal.NullDecimal `db:"monthly_rate"`
	YearlyRate  decimal.NullDecimal `db:"yearly_rate"`
	Status      string              `db:"status"`
	RentalID    sql.NullString      `db:"rental_id"`
	model.Metadata
}

// Tariffs exposes the configured unit prices to the rate calculator.
func (p *Property) Tariffs() rate.Tariffs {
	return rate.Tariffs{
		Hourly:  nullable(p.HourlyRate),
		Daily:   nullable(p.DailyRate),
		Weekly:  nullable(p.WeeklyRate),
		Monthly: nullable(p.MonthlyRate),
		Yearly:  nullable(p.YearlyRate),
	}
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}

	return &d.Decimal
}

// BoundTo reports whether the property is currently bound to the rental.
func (p *Property) BoundTo(rentalID string) bool {
	return p.RentalID.Valid && p.RentalID.String == rentalID
}

// EnsureBindable validates that a new rental may claim the property. The
// authoritative check is the guarded UPDATE in the repository; this one
// exists to produce a precise conflict message before any write.
func (p *Property) EnsureBindable() error {
	if p.Status == StatusAvailable && !p.RentalID.Valid {
		return nil
	}

	return failure.Conflict(failure.KindPropertyNotAvailable, fmt.Sprintf("property is not available (current status: %s)", p.Status)) //nolint:wrapcheck
}

// EnsureWorkflowStatus validates the available -> maintenance/cleaning moves,
// which require no bound rental.
func (p *Property) EnsureWorkflowStatus() error {
	if p.RentalID.Valid || p.Status == StatusOccupied {
		return failure.Conflict(failure.KindPropertyOccupied, "property has a bound rental") //nolint:wrapcheck
	}

	if p.Status != StatusAvailable {
		return failure.Conflict(failure.KindPropertyNotAvailable, fmt.Sprintf("property is not available (current status: %s)", p.Status)) //nolint:wrapcheck
	}

	return nil
}
