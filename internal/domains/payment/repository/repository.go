package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/internal/domains/payment/model"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/logger"
	gRepo "lodge/shared/repository"
)

type Payment interface {
	Insert(ctx context.Context, model model.PaymentEntry) error
	InsertTx(ctx context.Context, sqltx *sqlx.Tx, model model.PaymentEntry) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.PaymentEntry, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.PaymentEntry, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	SumByRental(ctx context.Context, rentalID string) (decimal.Decimal, error)
	SumByRentalTx(ctx context.Context, sqltx *sqlx.Tx, rentalID string) (decimal.Decimal, error)
}

type repositoryImpl struct {
	gRepo.Repository[model.PaymentEntry]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Payment {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.PaymentEntry](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

const sumQuery = "SELECT COALESCE(SUM(amount), 0) FROM " + model.TableName + " WHERE rental_id = $1"

// SumByRental returns the exact paid-to-date sum for a rental. Reads outside
// a transaction are advisory; any dependent write must re-read the sum via
// SumByRentalTx with the rental row locked.
func (repo *repositoryImpl) SumByRental(ctx context.Context, rentalID string) (decimal.Decimal, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".payment.SumByRental")
	defer scope.End()

	scope.SetAttribute(constant.OtelQueryAttributeKey, sumQuery)

	var sum decimal.Decimal

	if err := repo.db.Read.GetContext(ctx, &sum, sumQuery, rentalID); err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}

	return sum, nil
}

// SumByRentalTx is the in-transaction variant used by the overpayment check;
// the caller must already hold the rental row lock.
func (repo *repositoryImpl) SumByRentalTx(ctx context.Context, sqltx *sqlx.Tx, rentalID string) (decimal.Decimal, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".payment.SumByRentalTx")
	defer scope.End()

	scope.SetAttribute(constant.OtelQueryAttributeKey, sumQuery)

	var sum decimal.Decimal

	if err := sqltx.GetContext(ctx, &sum, sumQuery, rentalID); err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}

	return sum, nil
}
