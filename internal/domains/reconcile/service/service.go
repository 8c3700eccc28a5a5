package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=./mocks/service_mock.go -package=mocks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"lodge/config"
	"lodge/infras/kafka"
	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/infras/tasks"
	paymentDto "lodge/internal/domains/payment/model/dto"
	paymentRepo "lodge/internal/domains/payment/repository"
	paymentSvc "lodge/internal/domains/payment/service"
	propertyModel "lodge/internal/domains/property/model"
	propertyDto "lodge/internal/domains/property/model/dto"
	propertyRepo "lodge/internal/domains/property/repository"
	propertySvc "lodge/internal/domains/property/service"
	"lodge/internal/domains/reconcile/model/dto"
	rentalModel "lodge/internal/domains/rental/model"
	rentalDto "lodge/internal/domains/rental/model/dto"
	"lodge/internal/domains/rental/rate"
	rentalRepo "lodge/internal/domains/rental/repository"
	rentalSvc "lodge/internal/domains/rental/service"
	"lodge/shared"
	"lodge/shared/cache"
	"lodge/shared/constant"
	"lodge/shared/failure"
	"lodge/shared/lock"
	"lodge/shared/timezone"
)

// Reconciliation owns every operation that must keep rentals, properties and
// the payment ledger consistent with each other. Single-aggregate reads and
// writes live in the domain services; anything that crosses an aggregate
// boundary goes through here.
type Reconciliation interface {
	CreateRental(ctx context.Context, req rentalDto.CreateRentalRequest) (rentalDto.RentalResponse, error)
	CheckIn(ctx context.Context, rentalID string) (rentalDto.RentalResponse, error)
	CheckOut(ctx context.Context, rentalID string) (rentalDto.RentalResponse, error)
	Cancel(ctx context.Context, rentalID string, req rentalDto.CancelRentalRequest) (rentalDto.RentalResponse, error)
	Extend(ctx context.Context, rentalID string, req rentalDto.ExtendRentalRequest) (rentalDto.RentalResponse, error)
	AcceptPayment(ctx context.Context, req paymentDto.AcceptPaymentRequest) (paymentDto.PaymentStatus, error)
	BulkReleaseFromCleaning(ctx context.Context, req propertyDto.BulkReleaseRequest) (propertyDto.BulkReleaseResponse, error)
	View(ctx context.Context, rentalID string) (dto.ReconciliationView, error)
}

type serviceImpl struct {
	rentalRepo   rentalRepo.Rental
	propertyRepo propertyRepo.Property
	rentalSvc    rentalSvc.Rental
	ledger       paymentSvc.Ledger
	paymentRepo  paymentRepo.Payment
	txRunner     postgres.TxRunner
	locks        *lock.Keyed
	tasks        tasks.Tasks
	kafka        kafka.Client
	cache        cache.RedisCache
	cfg          *config.Config
	otel         otel.Otel
}

func New(
	rentalRepo rentalRepo.Rental,
	propertyRepo propertyRepo.Property,
	rentalSvc rentalSvc.Rental,
	ledger paymentSvc.Ledger,
	paymentRepo paymentRepo.Payment,
	txRunner postgres.TxRunner,
	locks *lock.Keyed,
	tasks tasks.Tasks,
	kafka kafka.Client,
	cache cache.RedisCache,
	cfg *config.Config,
	otel otel.Otel,
) Reconciliation {
	return &serviceImpl{
		rentalRepo:   rentalRepo,
		propertyRepo: propertyRepo,
		rentalSvc:    rentalSvc,
		ledger:       ledger,
		paymentRepo:  paymentRepo,
		txRunner:     txRunner,
		locks:        locks,
		tasks:        tasks,
		kafka:        kafka,
		cache:        cache,
		cfg:          cfg,
		otel:         otel,
	}
}

// CreateRental prices the request, inserts the rental and binds the property
// in one transaction. The guarded bind is the authoritative availability
// check; if it misses, the whole transaction rolls back and no rental exists.
func (s *serviceImpl) CreateRental(ctx context.Context, req rentalDto.CreateRentalRequest) (res rentalDto.RentalResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.CreateRental")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)

	start, err := req.Start()
	if err != nil {
		return res, failure.BadRequestFromString(fmt.Sprintf("invalid start date: %v", err)) // nolint:wrapcheck
	}

	release := s.locks.Acquire(shared.BuildCacheKey(propertyModel.EntityName, req.PropertyID))
	defer release()

	var rental rentalModel.Rental

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		property, err := s.propertyRepo.GetForUpdateTx(ctx, tx, shared.FilterByID(req.PropertyID, propertyModel.FieldID, propertyModel.TableName))
		if err != nil {
			log.Error().Err(err).Msg("failed to lock property")

			return fmt.Errorf("failed to lock property: %w", err)
		}

		if property.ID == constant.Empty {
			return failure.NotFound("property not found") // nolint:wrapcheck
		}

		if err := property.EnsureBindable(); err != nil {
			return err
		}

		quotation, err := s.rentalSvc.PriceAgainst(property.Tariffs(), req.RentalType, start, req.Duration)
		if err != nil {
			return err
		}

		rental = req.ToModel(start, quotation, user)

		if err := s.rentalRepo.InsertTx(ctx, tx, rental); err != nil {
			log.Error().Err(err).Msg("failed to insert rental")

			return fmt.Errorf("failed to insert rental: %w", err)
		}

		bound, err := s.propertyRepo.BindTx(ctx, tx, req.PropertyID, rental.ID, user)
		if err != nil {
			log.Error().Err(err).Msg("failed to bind property")

			return fmt.Errorf("failed to bind property: %w", err)
		}

		if !bound {
			return failure.Conflict(failure.KindPropertyNotAvailable, "property was claimed by another rental") // nolint:wrapcheck
		}

		return nil
	})
	if err != nil {
		return res, err
	}

	s.invalidateProperty(ctx, req.PropertyID)
	s.invalidateRentalCount(ctx)
	s.publishLifecycle(ctx, rental.ID, rental.PropertyID, rental.State)

	res.FromModel(rental, timezone.Now())

	return res, nil
}

// CheckIn moves a rental from pending_checkin to checked_in, enforcing the
// configured payment policy against the ledger inside the same transaction.
func (s *serviceImpl) CheckIn(ctx context.Context, rentalID string) (res rentalDto.RentalResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.CheckIn")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)
	now := timezone.Now()

	release := s.locks.Acquire(shared.BuildCacheKey(rentalModel.EntityName, rentalID))
	defer release()

	var rental rentalModel.Rental

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rental, err = s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}

		if err := rental.EnsureCheckIn(); err != nil {
			return err
		}

		if err := s.ensureCheckinPayment(ctx, tx, rental); err != nil {
			return err
		}

		moved, err := s.rentalRepo.TransitionTx(ctx, tx, rentalID, rentalModel.StatePendingCheckin, map[string]any{
			rentalModel.FieldState:       rentalModel.StateCheckedIn,
			rentalModel.FieldCheckedInAt: now,
		}, user)
		if err != nil {
			return fmt.Errorf("failed to check in rental: %w", err)
		}

		if !moved {
			return failure.Conflict(failure.KindNotPendingCheckin, "rental left pending_checkin while the request was in flight") // nolint:wrapcheck
		}

		return nil
	})
	if err != nil {
		return res, err
	}

	rental.State = rentalModel.StateCheckedIn
	rental.CheckedInAt = sql.NullTime{Time: now, Valid: true}

	s.invalidateRentalCount(ctx)
	s.publishLifecycle(ctx, rental.ID, rental.PropertyID, rental.State)

	res.FromModel(rental, timezone.Now())

	return res, nil
}

// CheckOut terminates a checked-in rental and releases its property. An
// expired rental checks out the same way; expiry is a reporting status, not a
// transition guard.
func (s *serviceImpl) CheckOut(ctx context.Context, rentalID string) (res rentalDto.RentalResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.CheckOut")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)
	now := timezone.Now()

	release := s.locks.Acquire(shared.BuildCacheKey(rentalModel.EntityName, rentalID))
	defer release()

	var rental rentalModel.Rental

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rental, err = s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}

		if err := rental.EnsureCheckOut(); err != nil {
			return err
		}

		moved, err := s.rentalRepo.TransitionTx(ctx, tx, rentalID, rentalModel.StateCheckedIn, map[string]any{
			rentalModel.FieldState:        rentalModel.StateCheckedOut,
			rentalModel.FieldCheckedOutAt: now,
		}, user)
		if err != nil {
			return fmt.Errorf("failed to check out rental: %w", err)
		}

		if !moved {
			return failure.Conflict(failure.KindAlreadyCheckedOut, "rental left checked_in while the request was in flight") // nolint:wrapcheck
		}

		return s.releaseProperty(ctx, tx, rental.PropertyID, rentalID, user)
	})
	if err != nil {
		return res, err
	}

	rental.State = rentalModel.StateCheckedOut
	rental.CheckedOutAt = sql.NullTime{Time: now, Valid: true}

	s.invalidateProperty(ctx, rental.PropertyID)
	s.invalidateRentalCount(ctx)
	s.publishLifecycle(ctx, rental.ID, rental.PropertyID, rental.State)

	res.FromModel(rental, timezone.Now())

	return res, nil
}

// Cancel terminates an active rental with a mandatory reason and releases its
// property.
func (s *serviceImpl) Cancel(ctx context.Context, rentalID string, req rentalDto.CancelRentalRequest) (res rentalDto.RentalResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.Cancel")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)

	release := s.locks.Acquire(shared.BuildCacheKey(rentalModel.EntityName, rentalID))
	defer release()

	var rental rentalModel.Rental

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rental, err = s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}

		if err := rental.EnsureCancel(); err != nil {
			return err
		}

		moved, err := s.rentalRepo.TransitionTx(ctx, tx, rentalID, rental.State, map[string]any{
			rentalModel.FieldState:              rentalModel.StateCancelled,
			rentalModel.FieldCancellationReason: req.Reason,
		}, user)
		if err != nil {
			return fmt.Errorf("failed to cancel rental: %w", err)
		}

		if !moved {
			return failure.Conflict(failure.KindAlreadyTerminal, "rental changed state while the request was in flight") // nolint:wrapcheck
		}

		return s.releaseProperty(ctx, tx, rental.PropertyID, rentalID, user)
	})
	if err != nil {
		return res, err
	}

	rental.State = rentalModel.StateCancelled
	rental.CancellationReason = sql.NullString{String: req.Reason, Valid: true}

	s.invalidateProperty(ctx, rental.PropertyID)
	s.invalidateRentalCount(ctx)
	s.publishLifecycle(ctx, rental.ID, rental.PropertyID, rental.State)

	res.FromModel(rental, timezone.Now())

	return res, nil
}

// Extend pushes the end date out by extra units of the original rental type
// and raises the total by units times the original rate. The deposit is never
// recomputed.
func (s *serviceImpl) Extend(ctx context.Context, rentalID string, req rentalDto.ExtendRentalRequest) (res rentalDto.RentalResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.Extend")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)

	release := s.locks.Acquire(shared.BuildCacheKey(rentalModel.EntityName, rentalID))
	defer release()

	var rental rentalModel.Rental

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rental, err = s.lockRental(ctx, tx, rentalID)
		if err != nil {
			return err
		}

		if err := rental.EnsureExtend(); err != nil {
			return err
		}

		newEnd, newTotal, err := rate.Requote(rental.RentalType, rental.EndDate, rental.Rate, rental.TotalAmount, req.ExtraDuration)
		if err != nil {
			return err
		}

		moved, err := s.rentalRepo.TransitionTx(ctx, tx, rentalID, rental.State, map[string]any{
			rentalModel.FieldEndDate:     newEnd,
			rentalModel.FieldTotalAmount: newTotal,
		}, user)
		if err != nil {
			return fmt.Errorf("failed to extend rental: %w", err)
		}

		if !moved {
			return failure.Conflict(failure.KindRentalNotActive, "rental changed state while the request was in flight") // nolint:wrapcheck
		}

		rental.EndDate = newEnd
		rental.TotalAmount = newTotal

		return nil
	})
	if err != nil {
		return res, err
	}

	s.publishLifecycle(ctx, rental.ID, rental.PropertyID, rental.State)

	res.FromModel(rental, timezone.Now())

	return res, nil
}

// AcceptPayment delegates to the ledger and publishes the accepted event.
func (s *serviceImpl) AcceptPayment(ctx context.Context, req paymentDto.AcceptPaymentRequest) (res paymentDto.PaymentStatus, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.AcceptPayment")
	defer scope.End()
	defer scope.TraceIfError(err)

	status, err := s.ledger.Accept(ctx, req)
	if err != nil {
		return res, err
	}

	if s.cfg.Kafka.Enable {
		go func() {
			c := context.WithoutCancel(ctx)

			event := dto.PaymentAcceptedEvent{
				RentalID:    status.RentalID,
				Amount:      req.Amount,
				PaidAmount:  status.PaidAmount,
				Outstanding: status.OutstandingAmount,
				IsFullyPaid: status.IsFullyPaid,
				OccurredAt:  timezone.Now().Format(time.RFC3339),
			}

			if err := s.kafka.SendMessages(c, constant.TopicPaymentAccepted, kafka.Message{Key: status.RentalID, Value: event}); err != nil {
				log.Error().Err(err).Msg("failed to publish payment accepted event")
			}
		}()
	}

	return status, nil
}

// BulkReleaseFromCleaning returns cleaned properties to the available pool.
// Each property is judged independently and every requested ID lands in
// exactly one of the two result lists; one bad property never blocks the
// rest. The task lookup happens before the property lock is taken so a slow
// collaborator cannot stall other operations on the same property.
func (s *serviceImpl) BulkReleaseFromCleaning(ctx context.Context, req propertyDto.BulkReleaseRequest) (res propertyDto.BulkReleaseResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.BulkReleaseFromCleaning")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyOperatorID).(string)

	res.Released = []string{}
	res.Skipped = []propertyDto.SkippedProperty{}

	for _, propertyID := range req.PropertyIDs {
		if skip := s.releaseFromCleaning(ctx, propertyID, user); skip != nil {
			res.Skipped = append(res.Skipped, *skip)

			continue
		}

		res.Released = append(res.Released, propertyID)
	}

	return res, nil
}

func (s *serviceImpl) releaseFromCleaning(ctx context.Context, propertyID, user string) *propertyDto.SkippedProperty {
	count, err := s.tasks.IncompleteCount(ctx, propertyID)
	if err != nil {
		return &propertyDto.SkippedProperty{
			PropertyID: propertyID,
			Kind:       failure.KindCollaboratorUnavailable,
			Reason:     "task collaborator unavailable",
		}
	}

	if count > 0 {
		return &propertyDto.SkippedProperty{
			PropertyID: propertyID,
			Kind:       failure.KindPropertyNotAvailable,
			Reason:     fmt.Sprintf("%d incomplete tasks remain", count),
		}
	}

	release := s.locks.Acquire(shared.BuildCacheKey(propertyModel.EntityName, propertyID))
	defer release()

	moved, err := s.propertyRepo.SetStatus(ctx, propertyID, propertyModel.StatusCleaning, propertyModel.StatusAvailable, user)
	if err != nil {
		log.Error().Err(err).Str("propertyID", propertyID).Msg("failed to release property from cleaning")

		return &propertyDto.SkippedProperty{
			PropertyID: propertyID,
			Kind:       failure.KindPropertyNotAvailable,
			Reason:     "storage error while releasing",
		}
	}

	if !moved {
		return &propertyDto.SkippedProperty{
			PropertyID: propertyID,
			Kind:       failure.KindPropertyNotAvailable,
			Reason:     "property is not in cleaning",
		}
	}

	s.invalidateProperty(ctx, propertyID)

	return nil
}

// View assembles the composite read of a rental.
func (s *serviceImpl) View(ctx context.Context, rentalID string) (res dto.ReconciliationView, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".reconcile.View")
	defer scope.End()
	defer scope.TraceIfError(err)

	rental, err := s.rentalRepo.Get(ctx, shared.FilterByID(rentalID, rentalModel.FieldID, rentalModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get rental for view")

		return res, fmt.Errorf("failed to get rental for view: %w", err)
	}

	if rental.ID == constant.Empty {
		return res, failure.NotFound("rental not found") // nolint:wrapcheck
	}

	property, err := s.propertyRepo.Get(ctx, shared.FilterByID(rental.PropertyID, propertyModel.FieldID, propertyModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get property for view")

		return res, fmt.Errorf("failed to get property for view: %w", err)
	}

	paid, err := s.paymentRepo.SumByRental(ctx, rentalID)
	if err != nil {
		log.Error().Err(err).Msg("failed to sum payment entries for view")

		return res, fmt.Errorf("failed to sum payment entries for view: %w", err)
	}

	res.Rental.FromModel(rental, timezone.Now())
	res.Property.FromModel(property)
	res.Payment = paymentDto.NewPaymentStatus(rentalID, rental.TotalAmount, paid)

	return res, nil
}

func (s *serviceImpl) lockRental(ctx context.Context, tx *sqlx.Tx, rentalID string) (rentalModel.Rental, error) {
	rental, err := s.rentalRepo.GetForUpdateTx(ctx, tx, shared.FilterByID(rentalID, rentalModel.FieldID, rentalModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to lock rental")

		return rental, fmt.Errorf("failed to lock rental: %w", err)
	}

	if rental.ID == constant.Empty {
		return rental, failure.NotFound("rental not found") // nolint:wrapcheck
	}

	return rental, nil
}

// ensureCheckinPayment enforces the configured policy against the in-tx paid
// sum so a concurrent payment cannot slip between the check and the
// transition.
func (s *serviceImpl) ensureCheckinPayment(ctx context.Context, tx *sqlx.Tx, rental rentalModel.Rental) error {
	policy := s.cfg.Rental.CheckinPaymentPolicy
	if policy == constant.CheckinPolicyNone {
		return nil
	}

	paid, err := s.paymentRepo.SumByRentalTx(ctx, tx, rental.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to sum payment entries for check-in")

		return fmt.Errorf("failed to sum payment entries for check-in: %w", err)
	}

	required := rental.Deposit
	if policy == constant.CheckinPolicyFull {
		required = rental.TotalAmount
	}

	if paid.LessThan(required) {
		return failure.Conflict(failure.KindPaymentRequired, fmt.Sprintf("check-in requires %s paid under the %s policy, got %s", required.String(), policy, paid.String())) // nolint:wrapcheck
	}

	return nil
}

// releaseProperty unbinds inside the terminating transaction. A missed guard
// means the binding already points elsewhere; the termination still commits.
func (s *serviceImpl) releaseProperty(ctx context.Context, tx *sqlx.Tx, propertyID, rentalID, user string) error {
	released, err := s.propertyRepo.ReleaseTx(ctx, tx, propertyID, rentalID, user)
	if err != nil {
		return fmt.Errorf("failed to release property: %w", err)
	}

	if !released {
		log.Warn().Str("propertyID", propertyID).Str("rentalID", rentalID).Msg("property was not bound to the terminating rental")
	}

	return nil
}

// invalidateProperty drops the cached reads the property service populates;
// every committed coordinator mutation that touches a property row calls it.
func (s *serviceImpl) invalidateProperty(ctx context.Context, propertyID string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(propertySvc.CacheKeyGetProperty, propertyID)); err != nil {
			log.Error().Err(err).Msg("failed to delete property from cache")
		}

		shared.InvalidateCaches(c, s.cache, propertySvc.CacheKeyGetAllProperty)
		shared.InvalidateCaches(c, s.cache, propertySvc.CacheKeyCountProperty)
	}()
}

func (s *serviceImpl) invalidateRentalCount(ctx context.Context) {
	go func() {
		c := context.WithoutCancel(ctx)

		shared.InvalidateCaches(c, s.cache, rentalSvc.CacheKeyCountRental)
	}()
}

func (s *serviceImpl) publishLifecycle(ctx context.Context, rentalID, propertyID, state string) {
	if !s.cfg.Kafka.Enable {
		return
	}

	go func() {
		c := context.WithoutCancel(ctx)

		event := dto.NewRentalLifecycleEvent(rentalID, propertyID, state, timezone.Now())

		if err := s.kafka.SendMessages(c, constant.TopicRentalLifecycle, kafka.Message{Key: rentalID, Value: event}); err != nil {
			log.Error().Err(err).Msg("failed to publish rental lifecycle event")
		}
	}()
}
