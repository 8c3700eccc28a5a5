package dto

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lodge/internal/domains/property/model"
	"lodge/shared"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"
)

type CreatePropertyRequest struct {
	Name        string `json:"name"         validate:"required,max=100"`
	Floor       int    `json:"floor"        validate:"gte=0"`
	HourlyRate  string `json:"hourly_rate"  validate:"omitempty,dec_gt_zero"`
	DailyRate   string `json:"daily_rate"   validate:"omitempty,dec_gt_zero"`
	WeeklyRate  string `json:"weekly_rate"  validate:"omitempty,dec_gt_zero"`
	MonthlyRate string `json:"monthly_rate" validate:"omitempty,dec_gt_zero"`
	YearlyRate  string `json:"yearly_rate"  validate:"omitempty,dec_gt_zero"`
}

func (c *CreatePropertyRequest) ToModel(user string) (model.Property, error) {
	property := model.Property{
		ID:     uuid.NewString(),
		Name:   c.Name,
		Floor:  c.Floor,
		Status: model.StatusAvailable,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}

	tariffCount := 0

	for _, tariff := range []struct {
		raw  string
		dest *decimal.NullDecimal
	}{
		{c.HourlyRate, &property.HourlyRate},
		{c.DailyRate, &property.DailyRate},
		{c.WeeklyRate, &property.WeeklyRate},
		{c.MonthlyRate, &property.MonthlyRate},
		{c.YearlyRate, &property.YearlyRate},
	} {
		if tariff.raw == "" {
			continue
		}

		d, err := decimal.NewFromString(tariff.raw)
		if err != nil {
			return model.Property{}, fmt.Errorf("invalid tariff %q: %w", tariff.raw, err)
		}

		*tariff.dest = decimal.NullDecimal{Decimal: d, Valid: true}
		tariffCount++
	}

	if tariffCount == 0 {
		return model.Property{}, failure.BadRequestFromString("at least one tariff must be configured") //nolint:wrapcheck
	}

	return property, nil
}

type PropertyResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Floor       int    `json:"floor"`
	HourlyRate  string `json:"hourly_rate,omitempty"`
	DailyRate   string `json:"daily_rate,omitempty"`
	WeeklyRate  string `json:"weekly_rate,omitempty"`
	MonthlyRate string `json:"monthly_rate,omitempty"`
	YearlyRate  string `json:"yearly_rate,omitempty"`
	Status      string `json:"status"`
	RentalID    string `json:"rental_id,omitempty"`
	gDto.Metadata
}

func (r *PropertyResponse) FromModel(property model.Property) {
	r.ID = property.ID
	r.Name = property.Name
	r.Floor = property.Floor
	r.HourlyRate = formatNullDecimal(property.HourlyRate)
	r.DailyRate = formatNullDecimal(property.DailyRate)
	r.WeeklyRate = formatNullDecimal(property.WeeklyRate)
	r.MonthlyRate = formatNullDecimal(property.MonthlyRate)
	r.YearlyRate = formatNullDecimal(property.YearlyRate)
	r.Status = property.Status
	r.RentalID = property.RentalID.String
	r.Metadata.FromModel(property.Metadata)
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}

	return d.Decimal.String()
}

type GetPropertiesResponse struct {
	Properties []PropertyResponse `json:"properties"`
	TotalPage  int                `json:"total_page"`
	TotalData  int                `json:"total_data"`
}

func (r *GetPropertiesResponse) FromModels(models []model.Property, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Properties = make([]PropertyResponse, len(models))
	for i, mod := range models {
		r.Properties[i].FromModel(mod)
	}
}

type BulkReleaseRequest struct {
	PropertyIDs []string `json:"property_ids" validate:"required,min=1,dive,required"`
}

type SkippedProperty struct {
	PropertyID string `json:"property_id"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason"`
}

// BulkReleaseResponse is a complete partition of the requested IDs: every ID
// lands in exactly one of the two lists.
type BulkReleaseResponse struct {
	Released []string          `json:"released"`
	Skipped  []SkippedProperty `json:"skipped"`
}
