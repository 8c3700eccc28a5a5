package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/internal/domains/property/model"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/logger"
	gRepo "lodge/shared/repository"
	"lodge/shared/timezone"
)

type Property interface {
	Insert(ctx context.Context, model model.Property) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Property, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Property, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Update(ctx context.Context, req map[string]any, filter gDto.FilterGroup) error
	GetForUpdateTx(ctx context.Context, sqltx *sqlx.Tx, filter gDto.FilterGroup) (model.Property, error)
	BindTx(ctx context.Context, sqltx *sqlx.Tx, propertyID, rentalID, user string) (bool, error)
	ReleaseTx(ctx context.Context, sqltx *sqlx.Tx, propertyID, rentalID, user string) (bool, error)
	SetStatus(ctx context.Context, propertyID, fromStatus, toStatus, user string) (bool, error)
	SetStatusTx(ctx context.Context, sqltx *sqlx.Tx, propertyID, fromStatus, toStatus, user string) (bool, error)
}

type repositoryImpl struct {
	gRepo.Repository[model.Property]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Property {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Property](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

// BindTx claims an available, unbound property for a rental with a single
// guarded UPDATE. A false return means the guard did not match: another
// rental holds the property or its status changed, and the caller must
// report a PropertyNotAvailable conflict. This write is what makes
// double-booking impossible regardless of what was read beforehand.
func (repo *repositoryImpl) BindTx(ctx context.Context, sqltx *sqlx.Tx, propertyID, rentalID, user string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".property.BindTx")
	defer scope.End()

	affected, err := repo.UpdateGuardedTx(ctx, sqltx, map[string]any{
		model.FieldStatus:        model.StatusOccupied,
		model.FieldRentalID:      rentalID,
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: user,
	}, bindGuard(propertyID))
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to bind property: %w", err)
	}

	return affected > 0, nil
}

// ReleaseTx unbinds the property from the given rental and returns it to the
// available pool. Guarded on the current binding so a release triggered by a
// stale rental cannot clobber a newer one.
func (repo *repositoryImpl) ReleaseTx(ctx context.Context, sqltx *sqlx.Tx, propertyID, rentalID, user string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".property.ReleaseTx")
	defer scope.End()

	affected, err := repo.UpdateGuardedTx(ctx, sqltx, map[string]any{
		model.FieldStatus:        model.StatusAvailable,
		model.FieldRentalID:      nil,
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: user,
	}, gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    propertyID,
				Table:    model.TableName,
				ArgName:  "guard_id",
			},
			gDto.Filter{
				Field:    model.FieldRentalID,
				Operator: gDto.FilterOperatorEq,
				Value:    rentalID,
				Table:    model.TableName,
				ArgName:  "guard_rental_id",
			},
		},
	})
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to release property: %w", err)
	}

	return affected > 0, nil
}

// SetStatus moves a property between unbound workflow statuses
// (available/maintenance/cleaning) with a guard on the expected prior status.
func (repo *repositoryImpl) SetStatus(ctx context.Context, propertyID, fromStatus, toStatus, user string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".property.SetStatus")
	defer scope.End()

	var (
		affected int64
		err      error
	)

	err = repo.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		affected, err = repo.setStatus(ctx, tx, propertyID, fromStatus, toStatus, user)

		return err
	})
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to set property status: %w", err)
	}

	return affected > 0, nil
}

func (repo *repositoryImpl) SetStatusTx(ctx context.Context, sqltx *sqlx.Tx, propertyID, fromStatus, toStatus, user string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".property.SetStatusTx")
	defer scope.End()

	affected, err := repo.setStatus(ctx, sqltx, propertyID, fromStatus, toStatus, user)
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to set property status: %w", err)
	}

	return affected > 0, nil
}

func (repo *repositoryImpl) setStatus(ctx context.Context, sqltx *sqlx.Tx, propertyID, fromStatus, toStatus, user string) (int64, error) {
	return repo.UpdateGuardedTx(ctx, sqltx, map[string]any{
		model.FieldStatus:        toStatus,
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: user,
	}, gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    propertyID,
				Table:    model.TableName,
				ArgName:  "guard_id",
			},
			gDto.Filter{
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorEq,
				Value:    fromStatus,
				Table:    model.TableName,
				ArgName:  "guard_status",
			},
			gDto.Filter{
				Field:    model.FieldRentalID,
				Operator: gDto.FilterIsNull,
				Table:    model.TableName,
			},
		},
	})
}

func bindGuard(propertyID string) gDto.FilterGroup {
	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    propertyID,
				Table:    model.TableName,
				ArgName:  "guard_id",
			},
			gDto.Filter{
				Field:    model.FieldStatus,
				Operator: gDto.FilterOperatorEq,
				Value:    model.StatusAvailable,
				Table:    model.TableName,
				ArgName:  "guard_status",
			},
			gDto.Filter{
				Field:    model.FieldRentalID,
				Operator: gDto.FilterIsNull,
				Table:    model.TableName,
			},
		},
	}
}
