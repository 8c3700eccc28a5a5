package rate_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lodge/internal/domains/rental/rate"
	"lodge/shared/failure"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)

	return &d
}

func TestQuote(t *testing.T) {
	depositRate := dec("0.20")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tariffs := rate.Tariffs{
		Hourly:  decPtr("500"),
		Daily:   decPtr("10000"),
		Monthly: decPtr("250000"),
	}

	tests := []struct {
		name        string
		rentalType  string
		start       time.Time
		duration    int
		wantRate    string
		wantTotal   string
		wantDeposit string
		wantEnd     time.Time
		wantKind    string
	}{
		{
			name:        "three daily units",
			rentalType:  rate.TypeDaily,
			start:       start,
			duration:    3,
			wantRate:    "10000",
			wantTotal:   "30000",
			wantDeposit: "6000",
			wantEnd:     time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "hourly arithmetic",
			rentalType:  rate.TypeHourly,
			start:       time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC),
			duration:    5,
			wantRate:    "500",
			wantTotal:   "2500",
			wantDeposit: "500",
			wantEnd:     time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			name:        "monthly preserves day of month",
			rentalType:  rate.TypeMonthly,
			start:       time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			duration:    2,
			wantRate:    "250000",
			wantTotal:   "500000",
			wantDeposit: "100000",
			wantEnd:     time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:        "monthly clamps to month end",
			rentalType:  rate.TypeMonthly,
			start:       time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			duration:    1,
			wantRate:    "250000",
			wantTotal:   "250000",
			wantDeposit: "50000",
			wantEnd:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:        "monthly clamp in non leap year",
			rentalType:  rate.TypeMonthly,
			start:       time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			duration:    1,
			wantRate:    "250000",
			wantTotal:   "250000",
			wantDeposit: "50000",
			wantEnd:     time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "no tariff for requested type",
			rentalType: rate.TypeWeekly,
			start:      start,
			duration:   1,
			wantKind:   failure.KindUnsupportedRentalType,
		},
		{
			name:       "unknown type",
			rentalType: "fortnightly",
			start:      start,
			duration:   1,
			wantKind:   failure.KindUnsupportedRentalType,
		},
		{
			name:       "zero duration",
			rentalType: rate.TypeDaily,
			start:      start,
			duration:   0,
			wantKind:   failure.KindInvalidDuration,
		},
		{
			name:       "negative duration",
			rentalType: rate.TypeDaily,
			start:      start,
			duration:   -2,
			wantKind:   failure.KindInvalidDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := rate.Quote(tariffs, tt.rentalType, tt.start, tt.duration, depositRate, 2)

			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, failure.GetKind(err))

				return
			}

			require.NoError(t, err)
			assert.True(t, dec(tt.wantRate).Equal(q.Rate), "rate: want %s got %s", tt.wantRate, q.Rate)
			assert.True(t, dec(tt.wantTotal).Equal(q.TotalAmount), "total: want %s got %s", tt.wantTotal, q.TotalAmount)
			assert.True(t, dec(tt.wantDeposit).Equal(q.Deposit), "deposit: want %s got %s", tt.wantDeposit, q.Deposit)
			assert.True(t, tt.wantEnd.Equal(q.EndDate), "end: want %s got %s", tt.wantEnd, q.EndDate)
		})
	}
}

func TestQuote_Deterministic(t *testing.T) {
	tariffs := rate.Tariffs{Daily: decPtr("9999")}
	start := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	first, err := rate.Quote(tariffs, rate.TypeDaily, start, 7, dec("0.20"), 2)
	require.NoError(t, err)

	second, err := rate.Quote(tariffs, rate.TypeDaily, start, 7, dec("0.20"), 2)
	require.NoError(t, err)

	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
	assert.True(t, first.Deposit.Equal(second.Deposit))
	assert.True(t, first.EndDate.Equal(second.EndDate))
}

func TestQuote_DepositRoundsHalfUp(t *testing.T) {
	// 3 * 2.05 = 6.15; 6.15 * 0.25 = 1.5375 -> 1.54 at two decimals.
	tariffs := rate.Tariffs{Daily: decPtr("2.05")}

	q, err := rate.Quote(tariffs, rate.TypeDaily, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3, dec("0.25"), 2)
	require.NoError(t, err)

	assert.True(t, dec("1.54").Equal(q.Deposit), "deposit: got %s", q.Deposit)
}

func TestRequote(t *testing.T) {
	end := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	newEnd, newTotal, err := rate.Requote(rate.TypeDaily, end, dec("10000"), dec("30000"), 2)
	require.NoError(t, err)

	assert.True(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC).Equal(newEnd))
	assert.True(t, dec("50000").Equal(newTotal))
}

func TestRequote_InvalidExtraDuration(t *testing.T) {
	_, _, err := rate.Requote(rate.TypeDaily, time.Now(), dec("10000"), dec("30000"), 0)

	require.Error(t, err)
	assert.Equal(t, failure.KindInvalidDuration, failure.GetKind(err))
}

func TestAddDuration_YearlyLeapDay(t *testing.T) {
	start := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	end, err := rate.AddDuration(start, rate.TypeYearly, 1)
	require.NoError(t, err)

	assert.True(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC).Equal(end))
}
