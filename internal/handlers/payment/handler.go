package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"lodge/infras/otel"
	"lodge/internal/domains/payment/model/dto"
	"lodge/internal/domains/payment/service"
	reconcileSvc "lodge/internal/domains/reconcile/service"
	"lodge/shared/constant"
	"lodge/shared/validator"
	"lodge/transport/http/response"
)

type Handler struct {
	ledger    service.Ledger
	reconcile reconcileSvc.Reconciliation
	otel      otel.Otel
}

func New(ledger service.Ledger, reconcile reconcileSvc.Reconciliation, otel otel.Otel) Handler {
	return Handler{
		ledger:    ledger,
		reconcile: reconcile,
		otel:      otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/payments", func(routerGroup chi.Router) {
		routerGroup.Post("/", handler.AcceptPayment)
		routerGroup.Get("/{rentalID}/status", handler.GetPaymentStatus)
		routerGroup.Get("/{rentalID}/entries", handler.GetPaymentEntries)
	})
}

// AcceptPayment records a payment against a rental. The idempotency key may
// arrive in the body or the Idempotency-Key header; retries with the same key
// return a DUPLICATE_PAYMENT conflict instead of a second entry.
func (handler *Handler) AcceptPayment(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".AcceptPayment")
	defer scope.End()

	req := dto.AcceptPaymentRequest{}

	// A key already present in the body wins; the header is the fallback for
	// clients that keep retry bookkeeping out of their payloads.
	req.IdempotencyKey = r.Header.Get(constant.RequestHeaderIdempotencyKey)

	if err := validator.Validate(r.Body, &req); err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to validate request body")

		response.WithError(w, err)

		return
	}

	res, err := handler.reconcile.AcceptPayment(ctx, req)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to accept payment")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Payment accepted successfully")

	response.WithJSON(w, http.StatusCreated, res)
}

// GetPaymentStatus derives the payment status of a rental.
func (handler *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetPaymentStatus")
	defer scope.End()

	rentalID := chi.URLParam(r, "rentalID")

	res, err := handler.ledger.StatusOf(ctx, rentalID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get payment status")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Payment status retrieved successfully")

	response.WithJSON(w, http.StatusOK, res)
}

// GetPaymentEntries lists the accepted entries of a rental in order.
func (handler *Handler) GetPaymentEntries(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".GetPaymentEntries")
	defer scope.End()

	rentalID := chi.URLParam(r, "rentalID")

	res, err := handler.ledger.Entries(ctx, rentalID)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to get payment entries")

		response.WithError(w, err)

		return
	}

	scope.AddEvent("Payment entries retrieved successfully")

	response.WithJSON(w, http.StatusOK, res)
}
