package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=./mocks/service_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/internal/domains/payment/model"
	"lodge/internal/domains/payment/model/dto"
	"lodge/internal/domains/payment/repository"
	rentalModel "lodge/internal/domains/rental/model"
	rentalRepo "lodge/internal/domains/rental/repository"
	"lodge/shared"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/lock"
)

// Ledger accepts payments against rentals and derives payment status from the
// append-only entry list. Accepted entries are never mutated or deleted.
type Ledger interface {
	Accept(ctx context.Context, req dto.AcceptPaymentRequest) (dto.PaymentStatus, error)
	StatusOf(ctx context.Context, rentalID string) (dto.PaymentStatus, error)
	Entries(ctx context.Context, rentalID string) (dto.GetPaymentEntriesResponse, error)
}

type serviceImpl struct {
	repo       repository.Payment
	rentalRepo rentalRepo.Rental
	txRunner   postgres.TxRunner
	locks      *lock.Keyed
	otel       otel.Otel
}

func New(repo repository.Payment, rentalRepo rentalRepo.Rental, txRunner postgres.TxRunner, locks *lock.Keyed, otel otel.Otel) Ledger {
	return &serviceImpl{
		repo:       repo,
		rentalRepo: rentalRepo,
		txRunner:   txRunner,
		locks:      locks,
		otel:       otel,
	}
}

// Accept records a payment entry. The rental row is locked for the duration
// of the transaction so the overpayment check and the insert see the same
// paid sum; concurrent payments against one rental serialize on that lock.
// A replayed idempotency key surfaces the unique violation as a
// DUPLICATE_PAYMENT conflict instead of a second entry.
func (s *serviceImpl) Accept(ctx context.Context, req dto.AcceptPaymentRequest) (res dto.PaymentStatus, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ledger.Accept")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)

	release := s.locks.Acquire(shared.BuildCacheKey(rentalModel.EntityName, req.RentalID))
	defer release()

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rental, err := s.rentalRepo.GetForUpdateTx(ctx, tx, shared.FilterByID(req.RentalID, rentalModel.FieldID, rentalModel.TableName))
		if err != nil {
			log.Error().Err(err).Msg("failed to lock rental for payment")

			return fmt.Errorf("failed to lock rental for payment: %w", err)
		}

		if rental.ID == constant.Empty {
			return failure.NotFound("rental not found") // nolint:wrapcheck
		}

		if !rental.Active() {
			return failure.Conflict(failure.KindRentalNotActive, fmt.Sprintf("payments are only accepted for active rentals (current state: %s)", rental.State)) // nolint:wrapcheck
		}

		paid, err := s.repo.SumByRentalTx(ctx, tx, req.RentalID)
		if err != nil {
			log.Error().Err(err).Msg("failed to sum payment entries")

			return fmt.Errorf("failed to sum payment entries: %w", err)
		}

		amount := req.AmountDecimal()
		if paid.Add(amount).GreaterThan(rental.TotalAmount) {
			outstanding := rental.TotalAmount.Sub(paid)

			return failure.Conflict(failure.KindOverpaymentRejected, fmt.Sprintf("payment of %s exceeds the outstanding amount %s", amount.String(), outstanding.String())) // nolint:wrapcheck
		}

		if err := s.repo.InsertTx(ctx, tx, req.ToModel(user)); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == constant.PqErrorCodeUniqueViolation {
				return failure.Conflict(failure.KindDuplicatePayment, fmt.Sprintf("a payment with idempotency key %q was already accepted for this rental", req.IdempotencyKey)) // nolint:wrapcheck
			}

			log.Error().Err(err).Msg("failed to insert payment entry")

			return fmt.Errorf("failed to insert payment entry: %w", err)
		}

		res = dto.NewPaymentStatus(req.RentalID, rental.TotalAmount, paid.Add(amount))

		return nil
	})
	if err != nil {
		return dto.PaymentStatus{}, err
	}

	return res, nil
}

// StatusOf derives the payment status outside a transaction. Reads are not
// serialized against in-flight payments; callers that need the exact figure
// at write time get it from Accept itself.
func (s *serviceImpl) StatusOf(ctx context.Context, rentalID string) (res dto.PaymentStatus, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ledger.StatusOf")
	defer scope.End()
	defer scope.TraceIfError(err)

	rental, err := s.rentalRepo.Get(ctx, shared.FilterByID(rentalID, rentalModel.FieldID, rentalModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get rental for payment status")

		return res, fmt.Errorf("failed to get rental for payment status: %w", err)
	}

	if rental.ID == constant.Empty {
		return res, failure.NotFound("rental not found") // nolint:wrapcheck
	}

	paid, err := s.repo.SumByRental(ctx, rentalID)
	if err != nil {
		log.Error().Err(err).Msg("failed to sum payment entries")

		return res, fmt.Errorf("failed to sum payment entries: %w", err)
	}

	return dto.NewPaymentStatus(rentalID, rental.TotalAmount, paid), nil
}

// Entries lists every accepted entry for a rental in acceptance order.
func (s *serviceImpl) Entries(ctx context.Context, rentalID string) (res dto.GetPaymentEntriesResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".ledger.Entries")
	defer scope.End()
	defer scope.TraceIfError(err)

	exist, err := s.rentalRepo.Exist(ctx, shared.FilterByID(rentalID, rentalModel.FieldID, rentalModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to check if rental exists")

		return res, fmt.Errorf("failed to check if rental exists: %w", err)
	}

	if !exist {
		return res, failure.NotFound("rental not found") // nolint:wrapcheck
	}

	models, err := s.repo.GetAll(ctx, gDto.QueryParams{
		SortBy:  model.FieldRecordedAt,
		SortDir: "ASC",
	}, shared.FilterByID(rentalID, model.FieldRentalID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get payment entries")

		return res, fmt.Errorf("failed to get payment entries: %w", err)
	}

	res.FromModels(models)

	return res, nil
}
