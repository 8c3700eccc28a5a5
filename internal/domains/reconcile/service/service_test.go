package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"lodge/config"
	"lodge/infras/otel/mocks"
	txMocks "lodge/infras/postgres/mocks"
	tasksMocks "lodge/infras/tasks/mocks"
	paymentMocks "lodge/internal/domains/payment/mocks"
	paymentDto "lodge/internal/domains/payment/model/dto"
	ledgerMocks "lodge/internal/domains/payment/service/mocks"
	propertyMocks "lodge/internal/domains/property/mocks"
	propertyModel "lodge/internal/domains/property/model"
	propertyDto "lodge/internal/domains/property/model/dto"
	propertySvc "lodge/internal/domains/property/service"
	"lodge/internal/domains/reconcile/service"
	rentalMocks "lodge/internal/domains/rental/mocks"
	rentalModel "lodge/internal/domains/rental/model"
	rentalDto "lodge/internal/domains/rental/model/dto"
	"lodge/internal/domains/rental/rate"
	rentalSvc "lodge/internal/domains/rental/service"
	rentalSvcMocks "lodge/internal/domains/rental/service/mocks"
	"lodge/shared"
	cacheMocks "lodge/shared/cache/mocks"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/lock"
)

type fixture struct {
	rentalRepo   *rentalMocks.MockRental
	propertyRepo *propertyMocks.MockProperty
	rentalSvc    *rentalSvcMocks.MockRental
	ledger       *ledgerMocks.MockLedger
	paymentRepo  *paymentMocks.MockPayment
	tasks        *tasksMocks.MockTasks
	cache        *cacheMocks.MockRedisCache
	cfg          *config.Config
	svc          service.Reconciliation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &fixture{
		rentalRepo:   rentalMocks.NewMockRental(ctrl),
		propertyRepo: propertyMocks.NewMockProperty(ctrl),
		rentalSvc:    rentalSvcMocks.NewMockRental(ctrl),
		ledger:       ledgerMocks.NewMockLedger(ctrl),
		paymentRepo:  paymentMocks.NewMockPayment(ctrl),
		tasks:        tasksMocks.NewMockTasks(ctrl),
		cache:        cacheMocks.NewMockRedisCache(ctrl),
		cfg:          &config.Config{},
	}

	f.cfg.Cache.TTL = 3600
	f.cfg.Rental.DepositRate = "0.20"
	f.cfg.Rental.CurrencyExponent = 2
	f.cfg.Rental.CheckinPaymentPolicy = constant.CheckinPolicyNone

	f.cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	f.svc = service.New(
		f.rentalRepo,
		f.propertyRepo,
		f.rentalSvc,
		f.ledger,
		f.paymentRepo,
		txMocks.NewTxRunner(),
		lock.NewKeyed(),
		f.tasks,
		nil, // kafka stays nil while publishing is disabled
		f.cache,
		f.cfg,
		mocks.NewOtel(),
	)

	return f
}

func boundProperty(id, rentalID string) propertyModel.Property {
	property := propertyModel.Property{
		ID:     id,
		Name:   "Suite 101",
		Status: propertyModel.StatusAvailable,
		DailyRate: decimal.NullDecimal{
			Decimal: decimal.NewFromInt(10000),
			Valid:   true,
		},
	}

	if rentalID != "" {
		property.Status = propertyModel.StatusOccupied
		property.RentalID.String = rentalID
		property.RentalID.Valid = true
	}

	return property
}

func checkedInRental(id string) rentalModel.Rental {
	return rentalModel.Rental{
		ID:          id,
		PropertyID:  "property-1",
		ClientID:    "client-1",
		RentalType:  "daily",
		StartDate:   time.Now().Add(-24 * time.Hour),
		EndDate:     time.Now().Add(48 * time.Hour),
		Rate:        decimal.NewFromInt(10000),
		TotalAmount: decimal.NewFromInt(30000),
		Deposit:     decimal.NewFromInt(6000),
		State:       rentalModel.StateCheckedIn,
	}
}

func pendingRental(id string) rentalModel.Rental {
	rental := checkedInRental(id)
	rental.State = rentalModel.StatePendingCheckin

	return rental
}

func TestReconciliation_CreateRental(t *testing.T) {
	quotation := rate.Quotation{
		Rate:        decimal.NewFromInt(10000),
		TotalAmount: decimal.NewFromInt(30000),
		Deposit:     decimal.NewFromInt(6000),
		EndDate:     time.Date(2027, time.March, 4, 14, 0, 0, 0, time.UTC),
	}

	req := rentalDto.CreateRentalRequest{
		PropertyID: "property-1",
		ClientID:   "client-1",
		RentalType: "daily",
		StartDate:  "2027-03-01T14:00:00Z",
		Duration:   3,
	}

	tests := []struct {
		name      string
		req       rentalDto.CreateRentalRequest
		setupMock func(f *fixture)
		wantErr   bool
		wantKind  string
	}{
		{
			name: "successful creation binds the property",
			req:  req,
			setupMock: func(f *fixture) {
				f.propertyRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(boundProperty("property-1", ""), nil)

				f.rentalSvc.EXPECT().
					PriceAgainst(gomock.Any(), "daily", gomock.Any(), 3).
					Return(quotation, nil)

				f.rentalRepo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)

				f.propertyRepo.EXPECT().
					BindTx(gomock.Any(), gomock.Any(), "property-1", gomock.Any(), gomock.Any()).
					Return(true, nil)
			},
			wantErr: false,
		},
		{
			name: "property already occupied",
			req:  req,
			setupMock: func(f *fixture) {
				f.propertyRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(boundProperty("property-1", "other-rental"), nil)
			},
			wantErr:  true,
			wantKind: failure.KindPropertyNotAvailable,
		},
		{
			name: "guarded bind misses and the transaction fails",
			req:  req,
			setupMock: func(f *fixture) {
				f.propertyRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(boundProperty("property-1", ""), nil)

				f.rentalSvc.EXPECT().
					PriceAgainst(gomock.Any(), "daily", gomock.Any(), 3).
					Return(quotation, nil)

				f.rentalRepo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)

				f.propertyRepo.EXPECT().
					BindTx(gomock.Any(), gomock.Any(), "property-1", gomock.Any(), gomock.Any()).
					Return(false, nil)
			},
			wantErr:  true,
			wantKind: failure.KindPropertyNotAvailable,
		},
		{
			name: "property not found",
			req:  req,
			setupMock: func(f *fixture) {
				f.propertyRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(propertyModel.Property{}, nil)
			},
			wantErr: true,
		},
		{
			name: "invalid start date",
			req: rentalDto.CreateRentalRequest{
				PropertyID: "property-1",
				ClientID:   "client-1",
				RentalType: "daily",
				StartDate:  "not-a-date",
				Duration:   3,
			},
			setupMock: func(f *fixture) {},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMock(f)

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := f.svc.CreateRental(ctx, tt.req)

			if tt.wantErr {
				assert.Error(t, err)

				if tt.wantKind != "" {
					assert.True(t, failure.IsKind(err, tt.wantKind))
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, rentalModel.StatePendingCheckin, res.State)
				assert.Equal(t, "30000", res.TotalAmount)
				assert.Equal(t, "6000", res.Deposit)
			}
		})
	}
}

func TestReconciliation_CheckIn(t *testing.T) {
	tests := []struct {
		name      string
		policy    string
		setupMock func(f *fixture)
		wantErr   bool
		wantKind  string
	}{
		{
			name:   "check in without payment under none policy",
			policy: constant.CheckinPolicyNone,
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(pendingRental("rental-1"), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StatePendingCheckin, gomock.Any(), gomock.Any()).
					Return(true, nil)
			},
			wantErr: false,
		},
		{
			name:   "deposit policy satisfied",
			policy: constant.CheckinPolicyDeposit,
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(pendingRental("rental-1"), nil)

				f.paymentRepo.EXPECT().
					SumByRentalTx(gomock.Any(), gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(6000), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StatePendingCheckin, gomock.Any(), gomock.Any()).
					Return(true, nil)
			},
			wantErr: false,
		},
		{
			name:   "deposit policy unmet",
			policy: constant.CheckinPolicyDeposit,
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(pendingRental("rental-1"), nil)

				f.paymentRepo.EXPECT().
					SumByRentalTx(gomock.Any(), gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(5999), nil)
			},
			wantErr:  true,
			wantKind: failure.KindPaymentRequired,
		},
		{
			name:   "full policy unmet",
			policy: constant.CheckinPolicyFull,
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(pendingRental("rental-1"), nil)

				f.paymentRepo.EXPECT().
					SumByRentalTx(gomock.Any(), gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(6000), nil)
			},
			wantErr:  true,
			wantKind: failure.KindPaymentRequired,
		},
		{
			name:   "already checked in",
			policy: constant.CheckinPolicyNone,
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(checkedInRental("rental-1"), nil)
			},
			wantErr:  true,
			wantKind: failure.KindNotPendingCheckin,
		},
		{
			name:   "rental not found",
			policy: constant.CheckinPolicyNone,
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(rentalModel.Rental{}, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Rental.CheckinPaymentPolicy = tt.policy
			tt.setupMock(f)

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := f.svc.CheckIn(ctx, "rental-1")

			if tt.wantErr {
				assert.Error(t, err)

				if tt.wantKind != "" {
					assert.True(t, failure.IsKind(err, tt.wantKind))
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, rentalModel.StateCheckedIn, res.State)
				assert.NotEmpty(t, res.CheckedInAt)
			}
		})
	}
}

func TestReconciliation_CheckOut(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(f *fixture)
		wantErr   bool
		wantKind  string
	}{
		{
			name: "successful check out releases the property",
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(checkedInRental("rental-1"), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StateCheckedIn, gomock.Any(), gomock.Any()).
					Return(true, nil)

				f.propertyRepo.EXPECT().
					ReleaseTx(gomock.Any(), gomock.Any(), "property-1", "rental-1", gomock.Any()).
					Return(true, nil)
			},
			wantErr: false,
		},
		{
			name: "expired rental still checks out",
			setupMock: func(f *fixture) {
				expired := checkedInRental("rental-1")
				expired.EndDate = time.Now().Add(-24 * time.Hour)

				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(expired, nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StateCheckedIn, gomock.Any(), gomock.Any()).
					Return(true, nil)

				f.propertyRepo.EXPECT().
					ReleaseTx(gomock.Any(), gomock.Any(), "property-1", "rental-1", gomock.Any()).
					Return(true, nil)
			},
			wantErr: false,
		},
		{
			name: "missed release guard does not fail the termination",
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(checkedInRental("rental-1"), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StateCheckedIn, gomock.Any(), gomock.Any()).
					Return(true, nil)

				f.propertyRepo.EXPECT().
					ReleaseTx(gomock.Any(), gomock.Any(), "property-1", "rental-1", gomock.Any()).
					Return(false, nil)
			},
			wantErr: false,
		},
		{
			name: "pending rental cannot check out",
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(pendingRental("rental-1"), nil)
			},
			wantErr:  true,
			wantKind: failure.KindNotCheckedIn,
		},
		{
			name: "double check out",
			setupMock: func(f *fixture) {
				terminal := checkedInRental("rental-1")
				terminal.State = rentalModel.StateCheckedOut

				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(terminal, nil)
			},
			wantErr:  true,
			wantKind: failure.KindAlreadyCheckedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMock(f)

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := f.svc.CheckOut(ctx, "rental-1")

			if tt.wantErr {
				assert.Error(t, err)

				if tt.wantKind != "" {
					assert.True(t, failure.IsKind(err, tt.wantKind))
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, rentalModel.StateCheckedOut, res.State)
				assert.NotEmpty(t, res.CheckedOutAt)
			}
		})
	}
}

func TestReconciliation_Cancel(t *testing.T) {
	req := rentalDto.CancelRentalRequest{Reason: "client requested"}

	tests := []struct {
		name      string
		setupMock func(f *fixture)
		wantErr   bool
		wantKind  string
	}{
		{
			name: "cancel pending rental",
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(pendingRental("rental-1"), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StatePendingCheckin, gomock.Any(), gomock.Any()).
					Return(true, nil)

				f.propertyRepo.EXPECT().
					ReleaseTx(gomock.Any(), gomock.Any(), "property-1", "rental-1", gomock.Any()).
					Return(true, nil)
			},
			wantErr: false,
		},
		{
			name: "cancel checked in rental",
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(checkedInRental("rental-1"), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StateCheckedIn, gomock.Any(), gomock.Any()).
					Return(true, nil)

				f.propertyRepo.EXPECT().
					ReleaseTx(gomock.Any(), gomock.Any(), "property-1", "rental-1", gomock.Any()).
					Return(true, nil)
			},
			wantErr: false,
		},
		{
			name: "terminal rental cannot be cancelled",
			setupMock: func(f *fixture) {
				terminal := checkedInRental("rental-1")
				terminal.State = rentalModel.StateCancelled

				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(terminal, nil)
			},
			wantErr:  true,
			wantKind: failure.KindAlreadyTerminal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMock(f)

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := f.svc.Cancel(ctx, "rental-1", req)

			if tt.wantErr {
				assert.Error(t, err)

				if tt.wantKind != "" {
					assert.True(t, failure.IsKind(err, tt.wantKind))
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, rentalModel.StateCancelled, res.State)
				assert.Equal(t, req.Reason, res.CancellationReason)
			}
		})
	}
}

func TestReconciliation_Extend(t *testing.T) {
	tests := []struct {
		name      string
		req       rentalDto.ExtendRentalRequest
		setupMock func(f *fixture)
		wantErr   bool
		wantKind  string
		wantTotal string
	}{
		{
			name: "extension raises total but not deposit",
			req:  rentalDto.ExtendRentalRequest{ExtraDuration: 2},
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(checkedInRental("rental-1"), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StateCheckedIn, gomock.Any(), gomock.Any()).
					Return(true, nil)
			},
			wantErr:   false,
			wantTotal: "50000",
		},
		{
			name: "terminal rental cannot be extended",
			req:  rentalDto.ExtendRentalRequest{ExtraDuration: 2},
			setupMock: func(f *fixture) {
				terminal := checkedInRental("rental-1")
				terminal.State = rentalModel.StateCheckedOut

				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(terminal, nil)
			},
			wantErr:  true,
			wantKind: failure.KindRentalNotActive,
		},
		{
			name: "concurrent transition loses the guard",
			req:  rentalDto.ExtendRentalRequest{ExtraDuration: 2},
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(checkedInRental("rental-1"), nil)

				f.rentalRepo.EXPECT().
					TransitionTx(gomock.Any(), gomock.Any(), "rental-1", rentalModel.StateCheckedIn, gomock.Any(), gomock.Any()).
					Return(false, nil)
			},
			wantErr:  true,
			wantKind: failure.KindRentalNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMock(f)

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := f.svc.Extend(ctx, "rental-1", tt.req)

			if tt.wantErr {
				assert.Error(t, err)

				if tt.wantKind != "" {
					assert.True(t, failure.IsKind(err, tt.wantKind))
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantTotal, res.TotalAmount)
				assert.Equal(t, "6000", res.Deposit)
			}
		})
	}
}

func TestReconciliation_AcceptPayment(t *testing.T) {
	f := newFixture(t)

	req := paymentDto.AcceptPaymentRequest{
		RentalID:       "rental-1",
		Amount:         "10000",
		Method:         "cash",
		PayerName:      "Jordan",
		IdempotencyKey: "key-1",
	}

	status := paymentDto.NewPaymentStatus("rental-1", decimal.NewFromInt(30000), decimal.NewFromInt(10000))

	f.ledger.EXPECT().
		Accept(gomock.Any(), req).
		Return(status, nil)

	ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
	res, err := f.svc.AcceptPayment(ctx, req)

	assert.NoError(t, err)
	assert.Equal(t, "20000", res.OutstandingAmount)

	t.Run("ledger error propagates", func(t *testing.T) {
		f := newFixture(t)

		f.ledger.EXPECT().
			Accept(gomock.Any(), req).
			Return(paymentDto.PaymentStatus{}, failure.Conflict(failure.KindDuplicatePayment, "duplicate"))

		_, err := f.svc.AcceptPayment(ctx, req)
		assert.True(t, failure.IsKind(err, failure.KindDuplicatePayment))
	})
}

func TestReconciliation_BulkReleaseFromCleaning(t *testing.T) {
	f := newFixture(t)

	req := propertyDto.BulkReleaseRequest{
		PropertyIDs: []string{"clean", "tasks-remain", "collaborator-down", "not-cleaning"},
	}

	f.tasks.EXPECT().
		IncompleteCount(gomock.Any(), "clean").
		Return(0, nil)

	f.propertyRepo.EXPECT().
		SetStatus(gomock.Any(), "clean", propertyModel.StatusCleaning, propertyModel.StatusAvailable, gomock.Any()).
		Return(true, nil)

	f.tasks.EXPECT().
		IncompleteCount(gomock.Any(), "tasks-remain").
		Return(3, nil)

	f.tasks.EXPECT().
		IncompleteCount(gomock.Any(), "collaborator-down").
		Return(0, errors.New("connection refused"))

	f.tasks.EXPECT().
		IncompleteCount(gomock.Any(), "not-cleaning").
		Return(0, nil)

	f.propertyRepo.EXPECT().
		SetStatus(gomock.Any(), "not-cleaning", propertyModel.StatusCleaning, propertyModel.StatusAvailable, gomock.Any()).
		Return(false, nil)

	ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
	res, err := f.svc.BulkReleaseFromCleaning(ctx, req)

	assert.NoError(t, err)
	assert.Equal(t, []string{"clean"}, res.Released)
	assert.Len(t, res.Skipped, 3)

	skippedKinds := map[string]string{}
	for _, skipped := range res.Skipped {
		skippedKinds[skipped.PropertyID] = skipped.Kind
	}

	assert.Equal(t, failure.KindPropertyNotAvailable, skippedKinds["tasks-remain"])
	assert.Equal(t, failure.KindCollaboratorUnavailable, skippedKinds["collaborator-down"])
	assert.Equal(t, failure.KindPropertyNotAvailable, skippedKinds["not-cleaning"])
}

func TestReconciliation_View(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(f *fixture)
		wantErr   bool
	}{
		{
			name: "composite view",
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(checkedInRental("rental-1"), nil)

				f.propertyRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(boundProperty("property-1", "rental-1"), nil)

				f.paymentRepo.EXPECT().
					SumByRental(gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(10000), nil)
			},
			wantErr: false,
		},
		{
			name: "rental not found",
			setupMock: func(f *fixture) {
				f.rentalRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(rentalModel.Rental{}, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMock(f)

			ctx := context.Background()
			res, err := f.svc.View(ctx, "rental-1")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "rental-1", res.Rental.ID)
				assert.Equal(t, "property-1", res.Property.ID)
				assert.Equal(t, "20000", res.Payment.OutstandingAmount)
				assert.False(t, res.Payment.IsFullyPaid)
			}
		})
	}
}

// propertyStore is a map-backed stand-in for the property table so concurrent
// coordinator calls can race through the real service and keyed lock; BindTx
// applies the same guard the SQL version does.
type propertyStore struct {
	mu       sync.Mutex
	property propertyModel.Property
}

func (s *propertyStore) Insert(_ context.Context, _ propertyModel.Property) error { return nil }

func (s *propertyStore) Get(_ context.Context, _ gDto.FilterGroup, _ ...string) (propertyModel.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.property, nil
}

func (s *propertyStore) GetAll(_ context.Context, _ gDto.QueryParams, _ gDto.FilterGroup, _ ...string) ([]propertyModel.Property, error) {
	return nil, nil
}

func (s *propertyStore) Exist(_ context.Context, _ gDto.FilterGroup) (bool, error) {
	return true, nil
}

func (s *propertyStore) Count(_ context.Context, _ gDto.FilterGroup) (int, error) { return 1, nil }

func (s *propertyStore) Update(_ context.Context, _ map[string]any, _ gDto.FilterGroup) error {
	return nil
}

func (s *propertyStore) GetForUpdateTx(_ context.Context, _ *sqlx.Tx, _ gDto.FilterGroup) (propertyModel.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.property, nil
}

func (s *propertyStore) BindTx(_ context.Context, _ *sqlx.Tx, _, rentalID, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.property.Status != propertyModel.StatusAvailable || s.property.RentalID.Valid {
		return false, nil
	}

	s.property.Status = propertyModel.StatusOccupied
	s.property.RentalID = sql.NullString{String: rentalID, Valid: true}

	return true, nil
}

func (s *propertyStore) ReleaseTx(_ context.Context, _ *sqlx.Tx, _, _, _ string) (bool, error) {
	return false, nil
}

func (s *propertyStore) SetStatus(_ context.Context, _, _, _, _ string) (bool, error) {
	return false, nil
}

func (s *propertyStore) SetStatusTx(_ context.Context, _ *sqlx.Tx, _, _, _, _ string) (bool, error) {
	return false, nil
}

// rentalStore records inserts so the test can count committed rentals.
type rentalStore struct {
	mu       sync.Mutex
	inserted []rentalModel.Rental
}

func (s *rentalStore) Insert(_ context.Context, rental rentalModel.Rental) error {
	return s.InsertTx(context.Background(), nil, rental)
}

func (s *rentalStore) InsertTx(_ context.Context, _ *sqlx.Tx, rental rentalModel.Rental) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inserted = append(s.inserted, rental)

	return nil
}

func (s *rentalStore) Get(_ context.Context, _ gDto.FilterGroup, _ ...string) (rentalModel.Rental, error) {
	return rentalModel.Rental{}, nil
}

func (s *rentalStore) GetAll(_ context.Context, _ gDto.QueryParams, _ gDto.FilterGroup, _ ...string) ([]rentalModel.Rental, error) {
	return nil, nil
}

func (s *rentalStore) Exist(_ context.Context, _ gDto.FilterGroup) (bool, error) { return true, nil }

func (s *rentalStore) Count(_ context.Context, _ gDto.FilterGroup) (int, error) { return 0, nil }

func (s *rentalStore) GetForUpdateTx(_ context.Context, _ *sqlx.Tx, _ gDto.FilterGroup) (rentalModel.Rental, error) {
	return rentalModel.Rental{}, nil
}

func (s *rentalStore) TransitionTx(_ context.Context, _ *sqlx.Tx, _, _ string, _ map[string]any, _ string) (bool, error) {
	return false, nil
}

func TestReconciliation_CreateRental_ConcurrentRequestsOneWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	properties := &propertyStore{property: boundProperty("property-1", "")}
	rentals := &rentalStore{}

	mockCache := cacheMocks.NewMockRedisCache(ctrl)
	mockCache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mockCache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600
	cfg.Rental.DepositRate = "0.20"
	cfg.Rental.CurrencyExponent = 2

	pricing := rentalSvc.New(rentals, properties, cfg, mockCache, mocks.NewOtel())

	svc := service.New(
		rentals,
		properties,
		pricing,
		ledgerMocks.NewMockLedger(ctrl),
		paymentMocks.NewMockPayment(ctrl),
		txMocks.NewTxRunner(),
		lock.NewKeyed(),
		tasksMocks.NewMockTasks(ctrl),
		nil, // kafka stays nil while publishing is disabled
		mockCache,
		cfg,
		mocks.NewOtel(),
	)

	ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")

	var wg sync.WaitGroup

	responses := make([]rentalDto.RentalResponse, 2)
	results := make([]error, 2)

	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			responses[i], results[i] = svc.CreateRental(ctx, rentalDto.CreateRentalRequest{
				PropertyID: "property-1",
				ClientID:   fmt.Sprintf("client-%d", i),
				RentalType: "daily",
				StartDate:  "2026-03-01T14:00:00Z",
				Duration:   3,
			})
		}(i)
	}

	wg.Wait()

	var won, lost int

	winnerID := ""

	for i, err := range results {
		if err == nil {
			won++
			winnerID = responses[i].ID

			continue
		}

		assert.True(t, failure.IsKind(err, failure.KindPropertyNotAvailable))
		lost++
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.Len(t, rentals.inserted, 1)
	assert.Equal(t, propertyModel.StatusOccupied, properties.property.Status)
	assert.Equal(t, winnerID, properties.property.RentalID.String)
}

func TestReconciliation_CreateRental_DropsStalePropertyReads(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRentalRepo := rentalMocks.NewMockRental(ctrl)
	mockPropertyRepo := propertyMocks.NewMockProperty(ctrl)
	mockRentalSvc := rentalSvcMocks.NewMockRental(ctrl)
	mockCache := cacheMocks.NewMockRedisCache(ctrl)

	cfg := &config.Config{}
	cfg.Rental.DepositRate = "0.20"
	cfg.Rental.CurrencyExponent = 2

	svc := service.New(
		mockRentalRepo,
		mockPropertyRepo,
		mockRentalSvc,
		ledgerMocks.NewMockLedger(ctrl),
		paymentMocks.NewMockPayment(ctrl),
		txMocks.NewTxRunner(),
		lock.NewKeyed(),
		tasksMocks.NewMockTasks(ctrl),
		nil, // kafka stays nil while publishing is disabled
		mockCache,
		cfg,
		mocks.NewOtel(),
	)

	mockPropertyRepo.EXPECT().
		GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(boundProperty("property-1", ""), nil)

	mockRentalSvc.EXPECT().
		PriceAgainst(gomock.Any(), "daily", gomock.Any(), 3).
		Return(rate.Quotation{
			Rate:        decimal.NewFromInt(10000),
			TotalAmount: decimal.NewFromInt(30000),
			Deposit:     decimal.NewFromInt(6000),
			EndDate:     time.Date(2026, time.March, 4, 14, 0, 0, 0, time.UTC),
		}, nil)

	mockRentalRepo.EXPECT().
		InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	mockPropertyRepo.EXPECT().
		BindTx(gomock.Any(), gomock.Any(), "property-1", gomock.Any(), gomock.Any()).
		Return(true, nil)

	// Invalidation is detached from the request; collect the touched keys
	// and wait for all of them before asserting.
	invalidated := make(chan string, 4)

	mockCache.EXPECT().
		Delete(gomock.Any(), shared.BuildCacheKey(propertySvc.CacheKeyGetProperty, "property-1")).
		DoAndReturn(func(_ context.Context, key string) error {
			invalidated <- key

			return nil
		})

	mockCache.EXPECT().
		Clear(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, prefix string) error {
			invalidated <- prefix

			return nil
		}).
		Times(3)

	ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")

	_, err := svc.CreateRental(ctx, rentalDto.CreateRentalRequest{
		PropertyID: "property-1",
		ClientID:   "client-1",
		RentalType: "daily",
		StartDate:  "2026-03-01T14:00:00Z",
		Duration:   3,
	})
	assert.NoError(t, err)

	touched := map[string]bool{}

	for i := 0; i < 4; i++ {
		select {
		case key := <-invalidated:
			touched[key] = true
		case <-time.After(time.Second):
			t.Fatal("cache invalidation did not run after the rental was created")
		}
	}

	assert.True(t, touched[shared.BuildCacheKey(propertySvc.CacheKeyGetProperty, "property-1")])
	assert.True(t, touched[propertySvc.CacheKeyGetAllProperty+"*"])
	assert.True(t, touched[propertySvc.CacheKeyCountProperty+"*"])
	assert.True(t, touched[rentalSvc.CacheKeyCountRental+"*"])
}
