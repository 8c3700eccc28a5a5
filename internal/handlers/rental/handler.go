package rental

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"lodge/infras/otel"
	reconcileSvc "lodge/internal/domains/reconcile/service"
	"lodge/internal/domains/rental/model"
	"lodge/internal/domains/rental/model/dto"
	"lodge/internal/domains/rental/service"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/validator"
	"lodge/transport/http/response"
)

type Handler struct {
	service   service.Rental
	reconcile reconcileSvc.Reconciliation
	otel      otel.Otel
}

func New(service service.Rental, reconcile reconcileSvc.Reconciliation, otel otel.Otel) Handler {
	return Handler{
		service:   service,
		reconcile: reconcile,
		otel:      otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/rentals", func(routerGroup chi.Router) {
		routerGroup.Post("/quote", handler.Quote)
		routerGroup.Post("/", handler.CreateRental)
		routerGroup.Get("/", handler.GetRentals)
		routerGroup.Get("/{id}", handler.GetRentalByID)
		routerGroup.Get("/{id}/view", handler.GetRentalView)
		routerGroup.Post("/{id}/check-in", handler.CheckIn)
		routerGroup.Post("/{id}/check-out", handler.CheckOut)
		routerGroup.Post("/{id}/cancel", handler.Cancel)
		routerGroup.Post("/{id}/extend", handler.Extend)
	})
}

// Quote prices a rental request without creating anything.
func (handler *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".Quote")
	defer scope.End()

	req := dto.QuoteRequest{}

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	res, err := handler.service.Quote(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to quote rental")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental quoted successfully")

	response.WithJSON(w, http.StatusOK, res)
}

// CreateRental creates a rental and claims its property atomically.
func (handler *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CreateRental")
	defer scope.End()

	req := dto.CreateRentalRequest{}

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	res, err := handler.reconcile.CreateRental(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to create rental")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental created successfully")

	response.WithJSON(w, http.StatusCreated, res)
}

// GetRentals lists rentals with optional state, property and client filters.
func (handler *Handler) GetRentals(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetRentals")
	defer scope.End()

	queryParams := gDto.QueryParams{}
	queryParams.FromRequest(r, true)

	state := r.URL.Query().Get(model.FieldState)
	propertyID := r.URL.Query().Get(model.FieldPropertyID)
	clientID := r.URL.Query().Get(model.FieldClientID)

	filterGroup := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters:  []any{},
	}

	if state != "" {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldState,
			Operator: gDto.FilterOperatorEq,
			Value:    state,
			Table:    model.TableName,
		})
	}

	if propertyID != "" {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldPropertyID,
			Operator: gDto.FilterOperatorEq,
			Value:    propertyID,
			Table:    model.TableName,
		})
	}

	if clientID != "" {
		filterGroup.Filters = append(filterGroup.Filters, gDto.Filter{
			Field:    model.FieldClientID,
			Operator: gDto.FilterOperatorEq,
			Value:    clientID,
			Table:    model.TableName,
		})
	}

	rentals, err := handler.service.GetAll(ctx, queryParams, filterGroup)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get rentals")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rentals retrieved successfully")

	response.WithJSON(w, http.StatusOK, rentals)
}

// GetRentalByID retrieves a single rental with its effective state.
func (handler *Handler) GetRentalByID(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetRentalByID")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	rental, err := handler.service.Get(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get rental")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental retrieved successfully")

	response.WithJSON(w, http.StatusOK, rental)
}

// GetRentalView retrieves the composite rental, property and payment view.
func (handler *Handler) GetRentalView(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetRentalView")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	view, err := handler.reconcile.View(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get rental view")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental view retrieved successfully")

	response.WithJSON(w, http.StatusOK, view)
}

// CheckIn moves a rental into checked_in.
func (handler *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CheckIn")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	res, err := handler.reconcile.CheckIn(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to check in rental")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental checked in successfully")

	response.WithJSON(w, http.StatusOK, res)
}

// CheckOut terminates a rental and frees its property.
func (handler *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".CheckOut")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	res, err := handler.reconcile.CheckOut(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to check out rental")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental checked out successfully")

	response.WithJSON(w, http.StatusOK, res)
}

// Cancel terminates an active rental with a mandatory reason.
func (handler *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".Cancel")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	req := dto.CancelRentalRequest{}

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	res, err := handler.reconcile.Cancel(ctx, id, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to cancel rental")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental cancelled successfully")

	response.WithJSON(w, http.StatusOK, res)
}

// Extend lengthens an active rental by extra units of its original type.
func (handler *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".Extend")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	req := dto.ExtendRentalRequest{}

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	res, err := handler.reconcile.Extend(ctx, id, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to extend rental")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Rental extended successfully")

	response.WithJSON(w, http.StatusOK, res)
}
