package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/credit-engine/internal/clock"
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/repository"
	"github.com/segyhp/credit-engine/internal/repository/mocks"
	"github.com/segyhp/credit-engine/internal/service"
	customError "github.com/segyhp/credit-engine/pkg/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLoan() *domain.Loan {
	return &domain.Loan{
		ID:   "LOAN123",
		Name: "Home",
		LoanTerms: domain.LoanTerms{
			Principal:    money("120000"),
			TenureMonths: 12,
			StartDate:    date(2024, 1, 15),
			DueDay:       15,
			OpeningRate:  money("12"),
		},
		CreatedAt: date(2024, 1, 15),
	}
}

type loanMocks struct {
	loans    *mocks.MockLoanRepository
	payments *mocks.MockPaymentRepository
	cache    *mocks.MockScheduleCache
}

func newLoanService(withCache bool) (*service.LoanService, loanMocks) {
	m := loanMocks{
		loans:    new(mocks.MockLoanRepository),
		payments: new(mocks.MockPaymentRepository),
		cache:    new(mocks.MockScheduleCache),
	}

	var cache repository.ScheduleCache
	if withCache {
		cache = m.cache
	}

	svc := service.NewLoanService(m.loans, m.payments, cache, clock.FixedDate(2024, 3, 1), zerolog.Nop(), money("9.5"))
	return svc, m
}

func TestCreateLoan(t *testing.T) {
	twelve := money("12")
	negative := money("-1")

	tests := []struct {
		name           string
		request        *domain.CreateLoanRequest
		setupMocks     func(*mocks.MockLoanRepository)
		expectedCode   string
		validateResult func(*testing.T, *domain.Loan)
	}{
		{
			name: "Success - Create new loan",
			request: &domain.CreateLoanRequest{
				Name: "Home", Principal: money("120000"), TenureMonths: 12,
				StartDate: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), DueDay: 15, OpeningRate: &twelve,
			},
			setupMocks: func(loans *mocks.MockLoanRepository) {
				loans.On("Create", mock.Anything, mock.MatchedBy(func(loan *domain.Loan) bool {
					return loan.Name == "Home" && loan.ID != ""
				})).Return(nil)
			},
			validateResult: func(t *testing.T, loan *domain.Loan) {
				assert.True(t, loan.OpeningRate.Equal(money("12")))
				assert.Equal(t, date(2024, 1, 15), loan.StartDate)
				assert.Equal(t, 15, loan.DueDay)
			},
		},
		{
			name: "Success - Opening rate defaults to fallback",
			request: &domain.CreateLoanRequest{
				Name: "Car", Principal: money("5000"), TenureMonths: 6, StartDate: date(2024, 1, 15),
			},
			setupMocks: func(loans *mocks.MockLoanRepository) {
				loans.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			validateResult: func(t *testing.T, loan *domain.Loan) {
				assert.True(t, loan.OpeningRate.Equal(money("9.5")))
				assert.Equal(t, 0, loan.DueDay)
			},
		},
		{
			name: "Failure - Non-positive principal",
			request: &domain.CreateLoanRequest{
				Name: "Bad", Principal: decimal.Zero, TenureMonths: 12, StartDate: date(2024, 1, 15),
			},
			setupMocks:   func(loans *mocks.MockLoanRepository) {},
			expectedCode: customError.ErrCodeInvalidInput,
		},
		{
			name: "Failure - Due day out of range",
			request: &domain.CreateLoanRequest{
				Name: "Bad", Principal: money("100"), TenureMonths: 12, StartDate: date(2024, 1, 15), DueDay: 32,
			},
			setupMocks:   func(loans *mocks.MockLoanRepository) {},
			expectedCode: customError.ErrCodeInvalidInput,
		},
		{
			name: "Failure - Negative opening rate",
			request: &domain.CreateLoanRequest{
				Name: "Bad", Principal: money("100"), TenureMonths: 12, StartDate: date(2024, 1, 15), OpeningRate: &negative,
			},
			setupMocks:   func(loans *mocks.MockLoanRepository) {},
			expectedCode: customError.ErrCodeInvalidInput,
		},
		{
			name: "Failure - Database error on Create",
			request: &domain.CreateLoanRequest{
				Name: "Home", Principal: money("120000"), TenureMonths: 12, StartDate: date(2024, 1, 15),
			},
			setupMocks: func(loans *mocks.MockLoanRepository) {
				loans.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
			},
			expectedCode: customError.ErrCodeDatabaseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newLoanService(false)
			tt.setupMocks(m.loans)

			loan, err := svc.CreateLoan(context.Background(), tt.request)

			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedCode, customError.CodeOf(err))
				assert.Nil(t, loan)
			} else {
				require.NoError(t, err)
				tt.validateResult(t, loan)
			}
			m.loans.AssertExpectations(t)
		})
	}
}

func TestAddRateChange(t *testing.T) {
	existing := []domain.RateChangeRecord{
		{ID: "r1", LoanID: "LOAN123", AnnualRate: money("11"), EffectiveDate: date(2024, 6, 1)},
	}

	t.Run("Success - Appends rate change", func(t *testing.T) {
		svc, m := newLoanService(false)
		m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
		m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(existing, nil)
		m.loans.On("CreateRateChange", mock.Anything, mock.MatchedBy(func(r *domain.RateChangeRecord) bool {
			return r.EffectiveDate.Equal(date(2024, 9, 1)) && r.AnnualRate.Equal(money("10"))
		})).Return(nil)

		record, err := svc.AddRateChange(context.Background(), &domain.AddRateChangeRequest{
			LoanID: "LOAN123", AnnualRate: money("10"), EffectiveDate: time.Date(2024, 9, 1, 17, 0, 0, 0, time.UTC),
		})

		require.NoError(t, err)
		assert.NotEmpty(t, record.ID)
		m.loans.AssertExpectations(t)
	})

	t.Run("Failure - Same effective date", func(t *testing.T) {
		svc, m := newLoanService(false)
		m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
		m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(existing, nil)

		_, err := svc.AddRateChange(context.Background(), &domain.AddRateChangeRequest{
			LoanID: "LOAN123", AnnualRate: money("10"), EffectiveDate: date(2024, 6, 1),
		})

		assert.Equal(t, customError.ErrCodeRateAlreadyDefined, customError.CodeOf(err))
		m.loans.AssertNotCalled(t, "CreateRateChange", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Loan not found", func(t *testing.T) {
		svc, m := newLoanService(false)
		m.loans.On("GetByID", mock.Anything, "NOPE").Return(nil, sql.ErrNoRows)

		_, err := svc.AddRateChange(context.Background(), &domain.AddRateChangeRequest{
			LoanID: "NOPE", AnnualRate: money("10"), EffectiveDate: date(2024, 6, 1),
		})

		assert.Equal(t, customError.ErrCodeLoanNotFound, customError.CodeOf(err))
		assert.True(t, errors.Is(err, customError.ErrLoanNotFound))
	})
}

func TestRecordPayment(t *testing.T) {
	first := &domain.InstallmentPayment{
		ID: "pay-1", LoanID: "LOAN123", SequenceNumber: 1, PaymentDate: date(2024, 2, 15),
		EMIAmount: money("10661.85"), PrincipalComponent: money("9438.84"),
		InterestComponent: money("1223.01"), OutstandingAfter: money("110561.16"),
	}

	tests := []struct {
		name           string
		request        *domain.RecordPaymentRequest
		prior          []*domain.InstallmentPayment
		expectCreate   bool
		expectedCode   string
		validateResult func(*testing.T, *domain.InstallmentPayment)
	}{
		{
			name:         "Success - First payment",
			request:      &domain.RecordPaymentRequest{LoanID: "LOAN123", PaymentDate: date(2024, 2, 15), Amount: money("10661.85")},
			expectCreate: true,
			validateResult: func(t *testing.T, p *domain.InstallmentPayment) {
				assert.Equal(t, 1, p.SequenceNumber)
				assert.True(t, p.InterestComponent.Equal(money("1223.01")))
				assert.True(t, p.OutstandingAfter.Equal(money("110561.16")))
				assert.NotEmpty(t, p.ID)
				assert.Equal(t, "LOAN123", p.LoanID)
			},
		},
		{
			name:         "Success - Second payment continues from the first",
			request:      &domain.RecordPaymentRequest{LoanID: "LOAN123", PaymentDate: date(2024, 3, 15), Amount: money("10661.85")},
			prior:        []*domain.InstallmentPayment{first},
			expectCreate: true,
			validateResult: func(t *testing.T, p *domain.InstallmentPayment) {
				assert.Equal(t, 2, p.SequenceNumber)
				assert.True(t, p.InterestComponent.Equal(money("1054.12")))
				assert.True(t, p.OutstandingAfter.Equal(money("100953.43")))
			},
		},
		{
			name:         "Failure - Payment before the last one",
			request:      &domain.RecordPaymentRequest{LoanID: "LOAN123", PaymentDate: date(2024, 2, 1), Amount: money("10661.85")},
			prior:        []*domain.InstallmentPayment{first},
			expectedCode: customError.ErrCodeInvalidInput,
		},
		{
			name:    "Failure - Loan already settled",
			request: &domain.RecordPaymentRequest{LoanID: "LOAN123", PaymentDate: date(2025, 2, 1), Amount: money("100")},
			prior: []*domain.InstallmentPayment{{
				SequenceNumber: 12, PaymentDate: date(2025, 1, 15), OutstandingAfter: decimal.Zero,
			}},
			expectedCode: customError.ErrCodeLoanSettled,
		},
		{
			name:         "Failure - Zero amount",
			request:      &domain.RecordPaymentRequest{LoanID: "LOAN123", PaymentDate: date(2024, 2, 15), Amount: decimal.Zero},
			expectedCode: customError.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newLoanService(false)
			m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
			m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return([]domain.RateChangeRecord{}, nil)
			m.payments.On("GetByLoanID", mock.Anything, "LOAN123").Return(tt.prior, nil)
			if tt.expectCreate {
				m.payments.On("Create", mock.Anything, mock.Anything).Return(nil)
			}

			payment, err := svc.RecordPayment(context.Background(), tt.request)

			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedCode, customError.CodeOf(err))
				m.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			tt.validateResult(t, payment)
			m.payments.AssertExpectations(t)
		})
	}
}

func TestHistoryAndSummary(t *testing.T) {
	recorded := []*domain.InstallmentPayment{
		{ID: "pay-1", SequenceNumber: 1, PaymentDate: date(2024, 2, 15), EMIAmount: money("10661.85"),
			PrincipalComponent: money("9438.84"), InterestComponent: money("1223.01"), OutstandingAfter: money("110561.16")},
		{ID: "pay-2", SequenceNumber: 2, PaymentDate: date(2024, 3, 15), EMIAmount: money("10661.85"),
			PrincipalComponent: money("9607.73"), InterestComponent: money("1054.12"), OutstandingAfter: money("100953.43")},
	}
	// A rate cut back-dated to the start re-prices the recorded payments
	cut := []domain.RateChangeRecord{{ID: "r1", AnnualRate: money("6"), EffectiveDate: date(2024, 1, 15)}}

	svc, m := newLoanService(false)
	m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
	m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(cut, nil)
	m.payments.On("GetByLoanID", mock.Anything, "LOAN123").Return(recorded, nil)

	history, err := svc.History(context.Background(), "LOAN123")
	require.NoError(t, err)
	require.Len(t, history.Schedule, 2)
	assert.Equal(t, "pay-1", history.Schedule[0].ID)
	assert.Equal(t, "pay-2", history.Schedule[1].ID)
	// 120000 * 6 * 31 / 36500 = 611.51
	assert.True(t, history.Schedule[0].InterestComponent.Equal(money("611.51")))
	assert.True(t, history.EMI.Equal(money("10661.85")))

	summary, err := svc.Summary(context.Background(), "LOAN123")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Installments)
	assert.True(t, summary.TotalPaid.Equal(money("21323.70")))
	assert.True(t, summary.FinalOutstanding.Equal(history.Schedule[1].OutstandingAfter))
}

func TestSummary_NoPayments(t *testing.T) {
	svc, m := newLoanService(false)
	m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
	m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(nil, nil)
	m.payments.On("GetByLoanID", mock.Anything, "LOAN123").Return(nil, nil)

	summary, err := svc.Summary(context.Background(), "LOAN123")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Installments)
	assert.True(t, summary.FinalOutstanding.Equal(money("120000")))
}

func TestProjection(t *testing.T) {
	key := repository.ScheduleKey("LOAN123", testLoan().LoanTerms, nil)

	t.Run("Success - Cache miss computes and stores", func(t *testing.T) {
		svc, m := newLoanService(true)
		m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
		m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(nil, nil)
		m.cache.On("Get", mock.Anything, key).Return(nil, false, nil)
		m.cache.On("Set", mock.Anything, key, mock.MatchedBy(func(s *domain.ScheduleResponse) bool {
			return len(s.Schedule) == 12
		})).Return(nil)

		projection, err := svc.Projection(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.True(t, projection.EMI.Equal(money("10661.85")))
		require.Len(t, projection.Schedule, 12)
		assert.True(t, projection.Summary.FinalOutstanding.IsZero())
		assert.Equal(t, "LOAN123", projection.Schedule[0].LoanID)
		m.cache.AssertExpectations(t)
	})

	t.Run("Success - Cache hit is returned as is", func(t *testing.T) {
		cached := &domain.ScheduleResponse{LoanID: "LOAN123", EMI: money("1")}
		svc, m := newLoanService(true)
		m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
		m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(nil, nil)
		m.cache.On("Get", mock.Anything, key).Return(cached, true, nil)

		projection, err := svc.Projection(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.Same(t, cached, projection)
		m.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success - Cache failures do not fail the projection", func(t *testing.T) {
		svc, m := newLoanService(true)
		m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
		m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(nil, nil)
		m.cache.On("Get", mock.Anything, key).Return(nil, false, errors.New("connection refused"))
		m.cache.On("Set", mock.Anything, key, mock.Anything).Return(errors.New("connection refused"))

		projection, err := svc.Projection(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.Len(t, projection.Schedule, 12)
	})

	t.Run("Success - Works without a cache", func(t *testing.T) {
		svc, m := newLoanService(false)
		m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
		m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(nil, nil)

		projection, err := svc.Projection(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.Len(t, projection.Schedule, 12)
	})

	t.Run("Failure - Database error", func(t *testing.T) {
		svc, m := newLoanService(true)
		m.loans.On("GetByID", mock.Anything, "LOAN123").Return(nil, errors.New("timeout"))

		_, err := svc.Projection(context.Background(), "LOAN123")

		assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))
	})
}

func TestWarmProjections(t *testing.T) {
	svc, m := newLoanService(false)
	m.loans.On("ListIDs", mock.Anything).Return([]string{"LOAN123", "GONE"}, nil)
	m.loans.On("GetByID", mock.Anything, "LOAN123").Return(testLoan(), nil)
	m.loans.On("GetByID", mock.Anything, "GONE").Return(nil, sql.ErrNoRows)
	m.loans.On("ListRateChanges", mock.Anything, "LOAN123").Return(nil, nil)

	warmed, err := svc.WarmProjections(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, warmed)
}
