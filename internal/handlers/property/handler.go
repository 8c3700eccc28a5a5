package property

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"lodge/infras/otel"
	"lodge/internal/domains/property/model"
	"lodge/internal/domains/property/model/dto"
	"lodge/internal/domains/property/service"
	reconcileSvc "lodge/internal/domains/reconcile/service"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/validator"
	"lodge/transport/http/response"
)

type Handler struct {
	service   service.Property
	reconcile reconcileSvc.Reconciliation
	otel      otel.Otel
}

func New(service service.Property, reconcile reconcileSvc.Reconciliation, otel otel.Otel) Handler {
	return Handler{
		service:   service,
		reconcile: reconcile,
		otel:      otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/properties", func(routerGroup chi.Router) {
		routerGroup.Post("/", handler.CreateProperty)
		routerGroup.Get("/", handler.GetProperties)
		routerGroup.Post("/bulk-release", handler.BulkRelease)
		routerGroup.Get("/{id}", handler.GetPropertyByID)
		routerGroup.Post("/{id}/maintenance", handler.MarkForMaintenance)
		routerGroup.Post("/{id}/cleaning", handler.MarkForCleaning)
		routerGroup.Post("/{id}/available", handler.MarkAvailable)
	})
}

// CreateProperty registers a new property with its tariffs.
func (handler *Handler) CreateProperty(writer http.ResponseWriter, request *http.Request) {
	ctx, scope := handler.otel.NewScope(request.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CreateProperty")
	defer scope.End()

	req := dto.CreatePropertyRequest{}

	if err := validator.Validate(request.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(writer, err)

		return
	}

	res, err := handler.service.Create(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to create property")

		response.WithError(writer, err)

		return
	}

	scope.AddEvent("Property created successfully")

	response.WithJSON(writer, http.StatusCreated, res)
}

// GetProperties lists properties with optional status and floor filters.
func (handler *Handler) GetProperties(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetProperties")
	defer scope.End()

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(r, true)

	status := r.URL.Query().Get(model.FieldStatus)
	floor := r.URL.Query().Get(model.FieldFloor)

	filterGroup := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters:  []any{},
	}

	if status != "" {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldStatus,
			Operator: gDto.FilterOperatorEq,
			Value:    status,
			Table:    model.TableName,
		})
	}

	if floorInt, err := strconv.Atoi(floor); err == nil {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldFloor,
			Operator: gDto.FilterOperatorEq,
			Value:    floorInt,
			Table:    model.TableName,
		})
	}

	properties, err := handler.service.GetAll(ctx, queryParams, filterGroup)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get properties")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Properties retrieved successfully")

	response.WithJSON(w, http.StatusOK, properties)
}

// GetPropertyByID retrieves a single property.
func (handler *Handler) GetPropertyByID(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetPropertyByID")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	property, err := handler.service.Get(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get property")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Property retrieved successfully")

	response.WithJSON(w, http.StatusOK, property)
}

// MarkForMaintenance takes an available property out of service.
func (handler *Handler) MarkForMaintenance(w http.ResponseWriter, r *http.Request) {
	handler.setStatus(w, r, "MarkForMaintenance", handler.service.MarkForMaintenance)
}

// MarkForCleaning sends an available property to housekeeping.
func (handler *Handler) MarkForCleaning(w http.ResponseWriter, r *http.Request) {
	handler.setStatus(w, r, "MarkForCleaning", handler.service.MarkForCleaning)
}

// MarkAvailable returns a property from maintenance to the pool.
func (handler *Handler) MarkAvailable(w http.ResponseWriter, r *http.Request) {
	handler.setStatus(w, r, "MarkAvailable", handler.service.MarkAvailable)
}

// BulkRelease returns cleaned properties to the available pool, skipping any
// that still have incomplete housekeeping tasks.
func (handler *Handler) BulkRelease(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".BulkRelease")
	defer scope.End()

	req := dto.BulkReleaseRequest{}

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	res, err := handler.reconcile.BulkReleaseFromCleaning(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to bulk release properties")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Bulk release completed")

	response.WithJSON(w, http.StatusOK, res)
}

func (handler *Handler) setStatus(w http.ResponseWriter, r *http.Request, operation string, fn func(ctx context.Context, id string) error) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+"."+operation)
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	if err := fn(ctx, id); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to update property status")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Property status updated successfully")

	response.WithMessage(w, http.StatusOK, "Property status updated successfully")
}
