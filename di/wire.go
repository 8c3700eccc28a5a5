//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"lodge/config"
	"lodge/infras/kafka"
	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/infras/redis"
	"lodge/infras/tasks"
	"lodge/shared/cache"
	"lodge/shared/lock"
	"lodge/transport/http"
	"lodge/transport/http/middleware"
	"lodge/transport/http/router"

	paymentRepository "lodge/internal/domains/payment/repository"
	paymentService "lodge/internal/domains/payment/service"
	propertyRepository "lodge/internal/domains/property/repository"
	propertyService "lodge/internal/domains/property/service"
	reconcileService "lodge/internal/domains/reconcile/service"
	rentalRepository "lodge/internal/domains/rental/repository"
	rentalService "lodge/internal/domains/rental/service"

	paymentHandler "lodge/internal/handlers/payment"
	propertyHandler "lodge/internal/handlers/property"
	rentalHandler "lodge/internal/handlers/rental"
)

var configurations = wire.NewSet(
	config.Get,
)

var infrastructures = wire.NewSet(
	postgres.New,
	wire.Bind(new(postgres.TxRunner), new(*postgres.Connection)),
	otel.New,
	redis.New,
	kafka.New,
	tasks.New,
)

var middlewares = wire.NewSet(
	middleware.NewAppMiddleware,
)

var sharedHelpers = wire.NewSet(
	cache.NewRedisCache,
	lock.NewKeyed,
)

var propertyDomain = wire.NewSet(
	propertyRepository.New,
	propertyService.New,
)

var rentalDomain = wire.NewSet(
	rentalRepository.New,
	rentalService.New,
)

var paymentDomain = wire.NewSet(
	paymentRepository.New,
	paymentService.New,
)

var reconcileDomain = wire.NewSet(
	reconcileService.New,
)

var domains = wire.NewSet(
	propertyDomain,
	rentalDomain,
	paymentDomain,
	reconcileDomain,
)

var routing = wire.NewSet(
	wire.Struct(new(router.DomainHandlers), "*"),
	propertyHandler.New,
	rentalHandler.New,
	paymentHandler.New,
	router.New,
)

func InitializeService() *http.HTTP {
	wire.Build(
		configurations,
		infrastructures,
		middlewares,
		sharedHelpers,
		domains,
		routing,
		http.New,
	)

	return &http.HTTP{}
}
