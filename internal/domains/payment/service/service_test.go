package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"lodge/infras/otel/mocks"
	txMocks "lodge/infras/postgres/mocks"
	paymentMocks "lodge/internal/domains/payment/mocks"
	"lodge/internal/domains/payment/model"
	"lodge/internal/domains/payment/model/dto"
	"lodge/internal/domains/payment/service"
	rentalMocks "lodge/internal/domains/rental/mocks"
	rentalModel "lodge/internal/domains/rental/model"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/lock"
)

func activeRental(id string, total string) rentalModel.Rental {
	amount, _ := decimal.NewFromString(total)

	return rentalModel.Rental{
		ID:          id,
		PropertyID:  "property-1",
		ClientID:    "client-1",
		RentalType:  "daily",
		TotalAmount: amount,
		State:       rentalModel.StateCheckedIn,
	}
}

func TestLedger_Accept(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := paymentMocks.NewMockPayment(ctrl)
	mockRentalRepo := rentalMocks.NewMockRental(ctrl)
	mockOtel := mocks.NewOtel()

	svc := service.New(mockRepo, mockRentalRepo, txMocks.NewTxRunner(), lock.NewKeyed(), mockOtel)

	req := dto.AcceptPaymentRequest{
		RentalID:       "rental-1",
		Amount:         "10000",
		Method:         "cash",
		PayerName:      "Jordan",
		IdempotencyKey: "key-1",
	}

	tests := []struct {
		name       string
		req        dto.AcceptPaymentRequest
		setupMock  func()
		wantErr    bool
		wantKind   string
		wantStatus dto.PaymentStatus
	}{
		{
			name: "successful payment",
			req:  req,
			setupMock: func() {
				mockRentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(activeRental("rental-1", "30000"), nil)

				mockRepo.EXPECT().
					SumByRentalTx(gomock.Any(), gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(5000), nil)

				mockRepo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)
			},
			wantErr:    false,
			wantStatus: dto.NewPaymentStatus("rental-1", decimal.NewFromInt(30000), decimal.NewFromInt(15000)),
		},
		{
			name: "payment settles the rental exactly",
			req:  req,
			setupMock: func() {
				mockRentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(activeRental("rental-1", "30000"), nil)

				mockRepo.EXPECT().
					SumByRentalTx(gomock.Any(), gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(20000), nil)

				mockRepo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)
			},
			wantErr:    false,
			wantStatus: dto.NewPaymentStatus("rental-1", decimal.NewFromInt(30000), decimal.NewFromInt(30000)),
		},
		{
			name: "overpayment rejected",
			req:  req,
			setupMock: func() {
				mockRentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(activeRental("rental-1", "30000"), nil)

				mockRepo.EXPECT().
					SumByRentalTx(gomock.Any(), gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(25000), nil)
			},
			wantErr:  true,
			wantKind: failure.KindOverpaymentRejected,
		},
		{
			name: "duplicate idempotency key",
			req:  req,
			setupMock: func() {
				mockRentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(activeRental("rental-1", "30000"), nil)

				mockRepo.EXPECT().
					SumByRentalTx(gomock.Any(), gomock.Any(), "rental-1").
					Return(decimal.Zero, nil)

				mockRepo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(&pq.Error{Code: pq.ErrorCode(constant.PqErrorCodeUniqueViolation)})
			},
			wantErr:  true,
			wantKind: failure.KindDuplicatePayment,
		},
		{
			name: "rental not found",
			req:  req,
			setupMock: func() {
				mockRentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(rentalModel.Rental{}, nil)
			},
			wantErr: true,
		},
		{
			name: "rental not active",
			req:  req,
			setupMock: func() {
				cancelled := activeRental("rental-1", "30000")
				cancelled.State = rentalModel.StateCancelled

				mockRentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(cancelled, nil)
			},
			wantErr:  true,
			wantKind: failure.KindRentalNotActive,
		},
		{
			name: "repository error",
			req:  req,
			setupMock: func() {
				mockRentalRepo.EXPECT().
					GetForUpdateTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(rentalModel.Rental{}, errors.New("database error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := svc.Accept(ctx, tt.req)

			if tt.wantErr {
				assert.Error(t, err)

				if tt.wantKind != "" {
					assert.True(t, failure.IsKind(err, tt.wantKind))
				}
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantStatus.PaidAmount, res.PaidAmount)
				assert.Equal(t, tt.wantStatus.OutstandingAmount, res.OutstandingAmount)
				assert.Equal(t, tt.wantStatus.IsFullyPaid, res.IsFullyPaid)
			}
		})
	}
}

func TestLedger_StatusOf(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := paymentMocks.NewMockPayment(ctrl)
	mockRentalRepo := rentalMocks.NewMockRental(ctrl)
	mockOtel := mocks.NewOtel()

	svc := service.New(mockRepo, mockRentalRepo, txMocks.NewTxRunner(), lock.NewKeyed(), mockOtel)

	tests := []struct {
		name            string
		rentalID        string
		setupMock       func()
		wantErr         bool
		wantOutstanding string
		wantFullyPaid   bool
	}{
		{
			name:     "partially paid",
			rentalID: "rental-1",
			setupMock: func() {
				mockRentalRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeRental("rental-1", "30000"), nil)

				mockRepo.EXPECT().
					SumByRental(gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(10000), nil)
			},
			wantErr:         false,
			wantOutstanding: "20000",
			wantFullyPaid:   false,
		},
		{
			name:     "fully paid",
			rentalID: "rental-1",
			setupMock: func() {
				mockRentalRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(activeRental("rental-1", "30000"), nil)

				mockRepo.EXPECT().
					SumByRental(gomock.Any(), "rental-1").
					Return(decimal.NewFromInt(30000), nil)
			},
			wantErr:         false,
			wantOutstanding: "0",
			wantFullyPaid:   true,
		},
		{
			name:     "rental not found",
			rentalID: "missing",
			setupMock: func() {
				mockRentalRepo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(rentalModel.Rental{}, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := svc.StatusOf(ctx, tt.rentalID)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantOutstanding, res.OutstandingAmount)
				assert.Equal(t, tt.wantFullyPaid, res.IsFullyPaid)
			}
		})
	}
}

func TestLedger_Entries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := paymentMocks.NewMockPayment(ctrl)
	mockRentalRepo := rentalMocks.NewMockRental(ctrl)
	mockOtel := mocks.NewOtel()

	svc := service.New(mockRepo, mockRentalRepo, txMocks.NewTxRunner(), lock.NewKeyed(), mockOtel)

	tests := []struct {
		name      string
		rentalID  string
		setupMock func()
		wantErr   bool
		wantTotal int
	}{
		{
			name:     "successful list",
			rentalID: "rental-1",
			setupMock: func() {
				mockRentalRepo.EXPECT().
					Exist(gomock.Any(), gomock.Any()).
					Return(true, nil)

				entries := []model.PaymentEntry{
					{ID: "entry-1", RentalID: "rental-1", Amount: decimal.NewFromInt(5000)},
					{ID: "entry-2", RentalID: "rental-1", Amount: decimal.NewFromInt(10000)},
				}

				mockRepo.EXPECT().
					GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(entries, nil)
			},
			wantErr:   false,
			wantTotal: 2,
		},
		{
			name:     "rental not found",
			rentalID: "missing",
			setupMock: func() {
				mockRentalRepo.EXPECT().
					Exist(gomock.Any(), gomock.Any()).
					Return(false, nil)
			},
			wantErr: true,
		},
		{
			name:     "repository error",
			rentalID: "rental-1",
			setupMock: func() {
				mockRentalRepo.EXPECT().
					Exist(gomock.Any(), gomock.Any()).
					Return(true, nil)

				mockRepo.EXPECT().
					GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.New("database error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")
			res, err := svc.Entries(ctx, tt.rentalID)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantTotal, res.TotalData)
				assert.Len(t, res.Entries, tt.wantTotal)
			}
		})
	}
}

// entryStore is a map-backed stand-in for the entry table so concurrent
// Accept calls can run through the real service and keyed lock.
type entryStore struct {
	mu      sync.Mutex
	entries []model.PaymentEntry
}

func (s *entryStore) sum() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range s.entries {
		total = total.Add(entry.Amount)
	}

	return total
}

func (s *entryStore) Insert(_ context.Context, entry model.PaymentEntry) error {
	return s.InsertTx(context.Background(), nil, entry)
}

func (s *entryStore) InsertTx(_ context.Context, _ *sqlx.Tx, entry model.PaymentEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)

	return nil
}

func (s *entryStore) Get(_ context.Context, _ gDto.FilterGroup, _ ...string) (model.PaymentEntry, error) {
	return model.PaymentEntry{}, nil
}

func (s *entryStore) GetAll(_ context.Context, _ gDto.QueryParams, _ gDto.FilterGroup, _ ...string) ([]model.PaymentEntry, error) {
	return nil, nil
}

func (s *entryStore) Count(_ context.Context, _ gDto.FilterGroup) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), nil
}

func (s *entryStore) SumByRental(_ context.Context, _ string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sum(), nil
}

func (s *entryStore) SumByRentalTx(_ context.Context, _ *sqlx.Tx, _ string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sum(), nil
}

// rentalStore serves a single fixed rental to the ledger.
type rentalStore struct {
	rental rentalModel.Rental
}

func (s *rentalStore) Insert(_ context.Context, _ rentalModel.Rental) error { return nil }

func (s *rentalStore) InsertTx(_ context.Context, _ *sqlx.Tx, _ rentalModel.Rental) error {
	return nil
}

func (s *rentalStore) Get(_ context.Context, _ gDto.FilterGroup, _ ...string) (rentalModel.Rental, error) {
	return s.rental, nil
}

func (s *rentalStore) GetAll(_ context.Context, _ gDto.QueryParams, _ gDto.FilterGroup, _ ...string) ([]rentalModel.Rental, error) {
	return nil, nil
}

func (s *rentalStore) Exist(_ context.Context, _ gDto.FilterGroup) (bool, error) { return true, nil }

func (s *rentalStore) Count(_ context.Context, _ gDto.FilterGroup) (int, error) { return 1, nil }

func (s *rentalStore) GetForUpdateTx(_ context.Context, _ *sqlx.Tx, _ gDto.FilterGroup) (rentalModel.Rental, error) {
	return s.rental, nil
}

func (s *rentalStore) TransitionTx(_ context.Context, _ *sqlx.Tx, _, _ string, _ map[string]any, _ string) (bool, error) {
	return false, nil
}

func TestLedger_Accept_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	store := &entryStore{}
	rentals := &rentalStore{rental: activeRental("rental-1", "30000")}

	svc := service.New(store, rentals, txMocks.NewTxRunner(), lock.NewKeyed(), mocks.NewOtel())

	ctx := context.WithValue(context.Background(), constant.ContextKeyOperatorID, "test-operator")

	var wg sync.WaitGroup

	results := make([]error, 2)

	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, results[i] = svc.Accept(ctx, dto.AcceptPaymentRequest{
				RentalID:       "rental-1",
				Amount:         "20000",
				Method:         model.MethodCash,
				PayerName:      "Jordan Lee",
				IdempotencyKey: fmt.Sprintf("concurrent-key-%d", i),
			})
		}(i)
	}

	wg.Wait()

	var accepted, rejected int

	for _, err := range results {
		if err == nil {
			accepted++

			continue
		}

		assert.True(t, failure.IsKind(err, failure.KindOverpaymentRejected))
		rejected++
	}

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
	assert.Len(t, store.entries, 1)
	assert.True(t, store.sum().Equal(decimal.NewFromInt(20000)))
}
