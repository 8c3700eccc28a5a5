package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=./mocks/service_mock.go -package=mocks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"lodge/config"
	"lodge/infras/otel"
	"lodge/internal/domains/property/model"
	"lodge/internal/domains/property/model/dto"
	"lodge/internal/domains/property/repository"
	"lodge/shared"
	"lodge/shared/cache"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/lock"
)

// Cache key prefixes, exported so coordinator mutations can invalidate the
// same entries this service populates.
const (
	CacheKeyGetProperty    = "property:get"
	CacheKeyGetAllProperty = "property:gets"
	CacheKeyCountProperty  = "property:count"
)

type Property interface {
	Create(ctx context.Context, req dto.CreatePropertyRequest) (dto.PropertyResponse, error)
	GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (dto.GetPropertiesResponse, error)
	Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (int, error)
	Get(ctx context.Context, id string) (dto.PropertyResponse, error)
	MarkForMaintenance(ctx context.Context, id string) error
	MarkForCleaning(ctx context.Context, id string) error
	MarkAvailable(ctx context.Context, id string) error
}

type serviceImpl struct {
	repo  repository.Property
	cfg   *config.Config
	cache cache.RedisCache
	locks *lock.Keyed
	otel  otel.Otel
}

func New(repo repository.Property, cfg *config.Config, cache cache.RedisCache, locks *lock.Keyed, otel otel.Otel) Property {
	return &serviceImpl{
		repo:  repo,
		cfg:   cfg,
		cache: cache,
		locks: locks,
		otel:  otel,
	}
}

func (s *serviceImpl) Create(ctx context.Context, req dto.CreatePropertyRequest) (res dto.PropertyResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".property.Create")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)

	property, err := req.ToModel(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to parse property request")

		return res, failure.BadRequestFromString(fmt.Sprintf("invalid property request: %v", err)) // nolint:wrapcheck
	}

	if err = s.repo.Insert(ctx, property); err != nil {
		log.Error().Err(err).Msg("failed to create property")

		return res, fmt.Errorf("failed to create property: %w", err)
	}

	go func() {
		c := context.WithoutCancel(ctx)

		shared.InvalidateCaches(c, s.cache, CacheKeyGetAllProperty)
		shared.InvalidateCaches(c, s.cache, CacheKeyCountProperty)
	}()

	res.FromModel(property)

	return res, nil
}

func (s *serviceImpl) GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetPropertiesResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".property.GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(CacheKeyGetAllProperty, req, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for properties")

		return res, nil
	}

	total, err := s.Count(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count properties")

		return res, fmt.Errorf("failed to count properties: %w", err)
	}

	models, err := s.repo.GetAll(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get properties")

		return res, fmt.Errorf("failed to get properties: %w", err)
	}

	res.FromModels(models, total, req.Limit)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save properties to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res int, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".property.Count")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(CacheKeyCountProperty, req, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for property count")

		return res, nil
	}

	res, err = s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count properties")

		return res, fmt.Errorf("failed to count properties: %w", err)
	}

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save property count to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (res dto.PropertyResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".property.Get")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKey(CacheKeyGetProperty, id)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for property")

		return res, nil
	}

	property, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get property")

		return res, fmt.Errorf("failed to get property: %w", err)
	}

	if property.ID == constant.Empty {
		return res, failure.NotFound("property not found") // nolint:wrapcheck
	}

	res.FromModel(property)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save property to cache")
		}
	}()

	return res, nil
}

// MarkForMaintenance moves an available, unbound property into maintenance.
func (s *serviceImpl) MarkForMaintenance(ctx context.Context, id string) error {
	return s.setWorkflowStatus(ctx, id, model.StatusAvailable, model.StatusMaintenance, "MarkForMaintenance")
}

// MarkForCleaning moves an available, unbound property into cleaning.
func (s *serviceImpl) MarkForCleaning(ctx context.Context, id string) error {
	return s.setWorkflowStatus(ctx, id, model.StatusAvailable, model.StatusCleaning, "MarkForCleaning")
}

// MarkAvailable returns a property from maintenance to the available pool.
// Properties in cleaning come back through the bulk release flow, which
// consults the task collaborator first.
func (s *serviceImpl) MarkAvailable(ctx context.Context, id string) error {
	return s.setWorkflowStatus(ctx, id, model.StatusMaintenance, model.StatusAvailable, "MarkAvailable")
}

func (s *serviceImpl) setWorkflowStatus(ctx context.Context, id, fromStatus, toStatus, operation string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".property."+operation)
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)

	release := s.locks.Acquire(shared.BuildCacheKey(model.EntityName, id))
	defer release()

	property, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get property")

		return fmt.Errorf("failed to get property: %w", err)
	}

	if property.ID == constant.Empty {
		return failure.NotFound("property not found") // nolint:wrapcheck
	}

	// Precise conflict before the guarded write; moves out of maintenance
	// only need the property unbound.
	if fromStatus == model.StatusAvailable {
		if err = property.EnsureWorkflowStatus(); err != nil {
			return err
		}
	} else if property.RentalID.Valid || property.Status == model.StatusOccupied {
		return failure.Conflict(failure.KindPropertyOccupied, "property has a bound rental") // nolint:wrapcheck
	}

	moved, err := s.repo.SetStatus(ctx, id, fromStatus, toStatus, user)
	if err != nil {
		log.Error().Err(err).Msg("failed to set property status")

		return fmt.Errorf("failed to set property status: %w", err)
	}

	if !moved {
		return failure.Conflict(failure.KindPropertyNotAvailable, fmt.Sprintf("property is not %s", fromStatus)) // nolint:wrapcheck
	}

	s.invalidate(ctx, id)

	return nil
}

func (s *serviceImpl) invalidate(ctx context.Context, id string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(CacheKeyGetProperty, id)); err != nil {
			log.Error().Err(err).Msg("failed to delete property from cache")
		}

		shared.InvalidateCaches(c, s.cache, CacheKeyGetAllProperty)
		shared.InvalidateCaches(c, s.cache, CacheKeyCountProperty)
	}()
}
