package model_test

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"lodge/internal/domains/property/model"
	"lodge/shared/failure"
)

func TestProperty_Tariffs(t *testing.T) {
	p := model.Property{
		DailyRate: decimal.NullDecimal{Decimal: decimal.NewFromInt(10000), Valid: true},
	}

	tariffs := p.Tariffs()

	assert.Nil(t, tariffs.Hourly)
	assert.Nil(t, tariffs.Monthly)
	if assert.NotNil(t, tariffs.Daily) {
		assert.True(t, decimal.NewFromInt(10000).Equal(*tariffs.Daily))
	}
}

func TestProperty_EnsureBindable(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		rentalID sql.NullString
		wantKind string
	}{
		{
			name:   "available and unbound",
			status: model.StatusAvailable,
		},
		{
			name:     "occupied",
			status:   model.StatusOccupied,
			rentalID: sql.NullString{String: "r-1", Valid: true},
			wantKind: failure.KindPropertyNotAvailable,
		},
		{
			name:     "maintenance",
			status:   model.StatusMaintenance,
			wantKind: failure.KindPropertyNotAvailable,
		},
		{
			name:     "cleaning",
			status:   model.StatusCleaning,
			wantKind: failure.KindPropertyNotAvailable,
		},
		{
			name:     "available but stale binding",
			status:   model.StatusAvailable,
			rentalID: sql.NullString{String: "r-1", Valid: true},
			wantKind: failure.KindPropertyNotAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.Property{Status: tt.status, RentalID: tt.rentalID}
			err := p.EnsureBindable()

			if tt.wantKind == "" {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantKind, failure.GetKind(err))
			}
		})
	}
}

func TestProperty_EnsureWorkflowStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		rentalID sql.NullString
		wantKind string
	}{
		{
			name:   "available",
			status: model.StatusAvailable,
		},
		{
			name:     "bound rental",
			status:   model.StatusOccupied,
			rentalID: sql.NullString{String: "r-1", Valid: true},
			wantKind: failure.KindPropertyOccupied,
		},
		{
			name:     "already in maintenance",
			status:   model.StatusMaintenance,
			wantKind: failure.KindPropertyNotAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.Property{Status: tt.status, RentalID: tt.rentalID}
			err := p.EnsureWorkflowStatus()

			if tt.wantKind == "" {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantKind, failure.GetKind(err))
			}
		})
	}
}
