// Package rate computes rental quotes. It is pure: all inputs arrive as
// arguments, nothing is read from storage or the clock, and the same inputs
// always produce the same quotation.
package rate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lodge/shared/failure"
)

const (
	TypeHourly  = "hourly"
	TypeDaily   = "daily"
	TypeWeekly  = "weekly"
	TypeMonthly = "monthly"
	TypeYearly  = "yearly"
)

const daysPerWeek = 7

// Tariffs holds a property's configured unit prices. A nil entry means the
// property does not offer that rental type.
type Tariffs struct {
	Hourly  *decimal.Decimal
	Daily   *decimal.Decimal
	Weekly  *decimal.Decimal
	Monthly *decimal.Decimal
	Yearly  *decimal.Decimal
}

func (t Tariffs) forType(rentalType string) *decimal.Decimal {
	switch rentalType {
	case TypeHourly:
		return t.Hourly
	case TypeDaily:
		return t.Daily
	case TypeWeekly:
		return t.Weekly
	case TypeMonthly:
		return t.Monthly
	case TypeYearly:
		return t.Yearly
	default:
		return nil
	}
}

// Quotation is the deterministic outcome of pricing a rental request.
type Quotation struct {
	Rate        decimal.Decimal
	TotalAmount decimal.Decimal
	Deposit     decimal.Decimal
	EndDate     time.Time
}

// Quote prices a rental of `duration` units of the requested type starting at
// `start`. The deposit is totalAmount * depositRate rounded half-up to the
// smallest currency unit given by exponent.
func Quote(tariffs Tariffs, rentalType string, start time.Time, duration int, depositRate decimal.Decimal, exponent int32) (Quotation, error) {
	if duration <= 0 {
		return Quotation{}, failure.Validation(failure.KindInvalidDuration, fmt.Sprintf("duration must be a positive integer, got %d", duration)) //nolint:wrapcheck
	}

	tariff := tariffs.forType(rentalType)
	if tariff == nil || !tariff.IsPositive() {
		return Quotation{}, failure.Validation(failure.KindUnsupportedRentalType, fmt.Sprintf("no tariff configured for rental type %q", rentalType)) //nolint:wrapcheck
	}

	endDate, err := AddDuration(start, rentalType, duration)
	if err != nil {
		return Quotation{}, err
	}

	total := tariff.Mul(decimal.NewFromInt(int64(duration)))

	return Quotation{
		Rate:        *tariff,
		TotalAmount: total,
		Deposit:     total.Mul(depositRate).Round(exponent),
		EndDate:     endDate,
	}, nil
}

// Requote extends an existing rental by extraDuration units of its original
// type. The deposit is intentionally left alone: it is a one-time hold taken
// at creation, not a running percentage of the total.
func Requote(rentalType string, endDate time.Time, unitRate, totalAmount decimal.Decimal, extraDuration int) (time.Time, decimal.Decimal, error) {
	if extraDuration <= 0 {
		return time.Time{}, decimal.Decimal{}, failure.Validation(failure.KindInvalidDuration, fmt.Sprintf("extra duration must be a positive integer, got %d", extraDuration)) //nolint:wrapcheck
	}

	newEnd, err := AddDuration(endDate, rentalType, extraDuration)
	if err != nil {
		return time.Time{}, decimal.Decimal{}, err
	}

	newTotal := totalAmount.Add(unitRate.Mul(decimal.NewFromInt(int64(extraDuration))))

	return newEnd, newTotal, nil
}

// AddDuration advances t by n units of the rental type's granularity. Month
// and year arithmetic is calendar aware: the day-of-month is preserved where
// it exists in the target month and clamped to the last day otherwise, so a
// one-month rental starting Jan 31 ends Feb 28 (or 29), never Mar 2.
func AddDuration(t time.Time, rentalType string, n int) (time.Time, error) {
	switch rentalType {
	case TypeHourly:
		return t.Add(time.Duration(n) * time.Hour), nil
	case TypeDaily:
		return t.AddDate(0, 0, n), nil
	case TypeWeekly:
		return t.AddDate(0, 0, n*daysPerWeek), nil
	case TypeMonthly:
		return addMonths(t, n), nil
	case TypeYearly:
		return addMonths(t, n*12), nil
	default:
		return time.Time{}, failure.Validation(failure.KindUnsupportedRentalType, fmt.Sprintf("unknown rental type %q", rentalType)) //nolint:wrapcheck
	}
}

func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
