package router

import (
	"github.com/go-chi/chi/v5"

	paymentHandler "lodge/internal/handlers/payment"
	propertyHandler "lodge/internal/handlers/property"
	rentalHandler "lodge/internal/handlers/rental"
)

type DomainHandlers struct {
	Property propertyHandler.Handler
	Rental   rentalHandler.Handler
	Payment  paymentHandler.Handler
}

type Router struct {
	DomainHandlers DomainHandlers
}

func (r *Router) SetupRoutes(router chi.Router) {
	router.Route("/v1", func(routerGroup chi.Router) {
		r.DomainHandlers.Property.Router(routerGroup)
		r.DomainHandlers.Rental.Router(routerGroup)
		r.DomainHandlers.Payment.Router(routerGroup)
	})
}

func New(domainHandlers DomainHandlers) Router {
	return Router{
		DomainHandlers: domainHandlers,
	}
}
