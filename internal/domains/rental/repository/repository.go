package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/internal/domains/rental/model"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/logger"
	gRepo "lodge/shared/repository"
	"lodge/shared/timezone"
)

type Rental interface {
	Insert(ctx context.Context, model model.Rental) error
	InsertTx(ctx context.Context, sqltx *sqlx.Tx, model model.Rental) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Rental, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Rental, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	GetForUpdateTx(ctx context.Context, sqltx *sqlx.Tx, filter gDto.FilterGroup) (model.Rental, error)
	TransitionTx(ctx context.Context, sqltx *sqlx.Tx, rentalID, fromState string, mod map[string]any, user string) (bool, error)
}

type repositoryImpl struct {
	gRepo.Repository[model.Rental]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Rental {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Rental](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

// TransitionTx applies a lifecycle transition guarded on the expected prior
// state. A false return means the rental was no longer in fromState at write
// time; the caller reports the conflict instead of retrying blindly. This
// guard is what keeps the lifecycle monotonic under concurrent operators.
func (repo *repositoryImpl) TransitionTx(ctx context.Context, sqltx *sqlx.Tx, rentalID, fromState string, mod map[string]any, user string) (bool, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".rental.TransitionTx")
	defer scope.End()

	mod[constant.FieldModifiedAt] = timezone.Now()
	mod[constant.FieldModifiedBy] = user

	affected, err := repo.UpdateGuardedTx(ctx, sqltx, mod, gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Operator: gDto.FilterOperatorEq,
				Value:    rentalID,
				Table:    model.TableName,
				ArgName:  "guard_id",
			},
			gDto.Filter{
				Field:    model.FieldState,
				Operator: gDto.FilterOperatorEq,
				Value:    fromState,
				Table:    model.TableName,
				ArgName:  "guard_state",
			},
		},
	})
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to transition rental: %w", err)
	}

	return affected > 0, nil
}
