// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"github.com/google/wire"
	"lodge/config"
	"lodge/infras/kafka"
	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/infras/redis"
	"lodge/infras/tasks"
	repository3 "lodge/internal/domains/payment/repository"
	service3 "lodge/internal/domains/payment/service"
	"lodge/internal/domains/property/repository"
	"lodge/internal/domains/property/service"
	service4 "lodge/internal/domains/reconcile/service"
	repository2 "lodge/internal/domains/rental/repository"
	service2 "lodge/internal/domains/rental/service"
	"lodge/internal/handlers/payment"
	"lodge/internal/handlers/property"
	"lodge/internal/handlers/rental"
	"lodge/shared/cache"
	"lodge/shared/lock"
	"lodge/transport/http"
	"lodge/transport/http/middleware"
	"lodge/transport/http/router"
)

// Injectors from wire.go:

func InitializeService() *http.HTTP {
	configConfig := config.Get()
	connection := postgres.New(configConfig)
	otelOtel := otel.New(configConfig)
	repositoryProperty := repository.New(connection, otelOtel)
	client := redis.New(configConfig)
	redisCache := cache.NewRedisCache(client, otelOtel)
	keyed := lock.NewKeyed()
	serviceProperty := service.New(repositoryProperty, configConfig, redisCache, keyed, otelOtel)
	repositoryRental := repository2.New(connection, otelOtel)
	serviceRental := service2.New(repositoryRental, repositoryProperty, configConfig, redisCache, otelOtel)
	repositoryPayment := repository3.New(connection, otelOtel)
	ledger := service3.New(repositoryPayment, repositoryRental, connection, keyed, otelOtel)
	tasksTasks := tasks.New(configConfig)
	kafkaClient := kafka.New(configConfig)
	reconciliation := service4.New(repositoryRental, repositoryProperty, serviceRental, ledger, repositoryPayment, connection, keyed, tasksTasks, kafkaClient, redisCache, configConfig, otelOtel)
	handler := property.New(serviceProperty, reconciliation, otelOtel)
	rentalHandler := rental.New(serviceRental, reconciliation, otelOtel)
	paymentHandler := payment.New(ledger, reconciliation, otelOtel)
	domainHandlers := router.DomainHandlers{
		Property: handler,
		Rental:   rentalHandler,
		Payment:  paymentHandler,
	}
	routerRouter := router.New(domainHandlers)
	appMiddleware := middleware.NewAppMiddleware(otelOtel, configConfig, redisCache)
	httpHTTP := http.New(configConfig, routerRouter, appMiddleware)
	return httpHTTP
}

// wire.go:

var configurations = wire.NewSet(config.Get)

var infrastructures = wire.NewSet(postgres.New, wire.Bind(new(postgres.TxRunner), new(*postgres.Connection)), otel.New, redis.New, kafka.New, tasks.New)

var middlewares = wire.NewSet(middleware.NewAppMiddleware)

var sharedHelpers = wire.NewSet(cache.NewRedisCache, lock.NewKeyed)

var propertyDomain = wire.NewSet(repository.New, service.New)

var rentalDomain = wire.NewSet(repository2.New, service2.New)

var paymentDomain = wire.NewSet(repository3.New, service3.New)

var reconcileDomain = wire.NewSet(service4.New)

var domains = wire.NewSet(
	propertyDomain,
	rentalDomain,
	paymentDomain,
	reconcileDomain,
)

var routing = wire.NewSet(wire.Struct(new(router.DomainHandlers), "*"), property.New, rental.New, payment.New, router.New)
