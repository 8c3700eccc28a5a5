package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=./mocks/service_mock.go -package=mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"lodge/config"
	"lodge/infras/otel"
	propertyModel "lodge/internal/domains/property/model"
	propertyRepo "lodge/internal/domains/property/repository"
	"lodge/internal/domains/rental/model"
	"lodge/internal/domains/rental/model/dto"
	"lodge/internal/domains/rental/rate"
	"lodge/internal/domains/rental/repository"
	"lodge/shared"
	"lodge/shared/cache"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/timezone"
)

const CacheKeyCountRental = "rental:count"

// Rental prices rentals and serves rental reads. Lifecycle writes go through
// the reconciliation coordinator, which also owns the property binding.
type Rental interface {
	Quote(ctx context.Context, req dto.QuoteRequest) (dto.QuoteResponse, error)
	PriceAgainst(tariffs rate.Tariffs, rentalType string, start time.Time, duration int) (rate.Quotation, error)
	GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (dto.GetRentalsResponse, error)
	Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (int, error)
	Get(ctx context.Context, id string) (dto.RentalResponse, error)
}

type serviceImpl struct {
	repo         repository.Rental
	propertyRepo propertyRepo.Property
	cfg          *config.Config
	cache        cache.RedisCache
	otel         otel.Otel
}

func New(repo repository.Rental, propertyRepo propertyRepo.Property, cfg *config.Config, cache cache.RedisCache, otel otel.Otel) Rental {
	return &serviceImpl{
		repo:         repo,
		propertyRepo: propertyRepo,
		cfg:          cfg,
		cache:        cache,
		otel:         otel,
	}
}

// Quote prices a rental request against the property's tariffs without
// writing anything. The same request always yields the same quotation.
func (s *serviceImpl) Quote(ctx context.Context, req dto.QuoteRequest) (res dto.QuoteResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".rental.Quote")
	defer scope.End()
	defer scope.TraceIfError(err)

	start, err := req.Start()
	if err != nil {
		return res, failure.BadRequestFromString(fmt.Sprintf("invalid start date: %v", err)) // nolint:wrapcheck
	}

	property, err := s.propertyRepo.Get(ctx, shared.FilterByID(req.PropertyID, propertyModel.FieldID, propertyModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get property for quote")

		return res, fmt.Errorf("failed to get property for quote: %w", err)
	}

	if property.ID == constant.Empty {
		return res, failure.NotFound("property not found") // nolint:wrapcheck
	}

	quotation, err := s.PriceAgainst(property.Tariffs(), req.RentalType, start, req.Duration)
	if err != nil {
		return res, err
	}

	res.FromQuotation(req, start, quotation)

	return res, nil
}

// PriceAgainst runs the rate calculation with the configured deposit rate and
// currency exponent. Exposed so the coordinator prices with the same settings
// it persists with.
func (s *serviceImpl) PriceAgainst(tariffs rate.Tariffs, rentalType string, start time.Time, duration int) (rate.Quotation, error) {
	depositRate, err := decimal.NewFromString(s.cfg.Rental.DepositRate)
	if err != nil {
		return rate.Quotation{}, fmt.Errorf("invalid deposit rate configuration %q: %w", s.cfg.Rental.DepositRate, err)
	}

	return rate.Quote(tariffs, rentalType, start, duration, depositRate, s.cfg.Rental.CurrencyExponent) // nolint:wrapcheck
}

func (s *serviceImpl) GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetRentalsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".rental.GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	// Responses carry the effective state at read time, so rental reads are
	// never cached past the expiry boundary the way property reads are.
	total, err := s.Count(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count rentals")

		return res, fmt.Errorf("failed to count rentals: %w", err)
	}

	models, err := s.repo.GetAll(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get rentals")

		return res, fmt.Errorf("failed to get rentals: %w", err)
	}

	res.FromModels(models, timezone.Now(), total, req.Limit)

	return res, nil
}

func (s *serviceImpl) Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res int, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".rental.Count")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(CacheKeyCountRental, req, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for rental count")

		return res, nil
	}

	res, err = s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count rentals")

		return res, fmt.Errorf("failed to count rentals: %w", err)
	}

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save rental count to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (res dto.RentalResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".rental.Get")
	defer scope.End()
	defer scope.TraceIfError(err)

	rental, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get rental")

		return res, fmt.Errorf("failed to get rental: %w", err)
	}

	if rental.ID == constant.Empty {
		return res, failure.NotFound("rental not found") // nolint:wrapcheck
	}

	res.FromModel(rental, timezone.Now())

	return res, nil
}
