package mocks

import (
	"context"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLoanRepository) ListRateChanges(ctx context.Context, loanID string) ([]domain.RateChangeRecord, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RateChangeRecord), args.Error(1)
}

func (m *MockLoanRepository) CreateRateChange(ctx context.Context, record *domain.RateChangeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.InstallmentPayment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.InstallmentPayment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InstallmentPayment), args.Error(1)
}

type MockStatementRepository struct {
	mock.Mock
}

func (m *MockStatementRepository) CreateCreditAccount(ctx context.Context, account *domain.CreditAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockStatementRepository) GetCreditAccount(ctx context.Context, accountID string) (*domain.CreditAccount, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditAccount), args.Error(1)
}

func (m *MockStatementRepository) ListCreditAccounts(ctx context.Context) ([]*domain.CreditAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CreditAccount), args.Error(1)
}

func (m *MockStatementRepository) GetAdvanceBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatementRepository) CreateLine(ctx context.Context, line *domain.StatementLineItem) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}

func (m *MockStatementRepository) GetPendingLines(ctx context.Context, accountID string, upTo *time.Time) ([]domain.StatementLineItem, error) {
	args := m.Called(ctx, accountID, upTo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StatementLineItem), args.Error(1)
}

func (m *MockStatementRepository) GetLinesByIDs(ctx context.Context, ids []string) ([]domain.StatementLineItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StatementLineItem), args.Error(1)
}

func (m *MockStatementRepository) CreatePlan(ctx context.Context, plan *domain.InstallmentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockStatementRepository) GetPlan(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InstallmentPlan), args.Error(1)
}

func (m *MockStatementRepository) ListPlans(ctx context.Context, accountID string) ([]domain.InstallmentPlan, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InstallmentPlan), args.Error(1)
}

func (m *MockStatementRepository) DeletePlan(ctx context.Context, planID string) error {
	args := m.Called(ctx, planID)
	return args.Error(0)
}

func (m *MockStatementRepository) GetAllocationsByRepayment(ctx context.Context, repaymentID string) ([]domain.PaymentAllocation, error) {
	args := m.Called(ctx, repaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentAllocation), args.Error(1)
}

func (m *MockStatementRepository) ApplyRepayment(ctx context.Context, repayment *domain.Repayment) error {
	args := m.Called(ctx, repayment)
	return args.Error(0)
}

type MockScheduleCache struct {
	mock.Mock
}

func (m *MockScheduleCache) Get(ctx context.Context, key string) (*domain.ScheduleResponse, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Bool(1), args.Error(2)
}

func (m *MockScheduleCache) Set(ctx context.Context, key string, schedule *domain.ScheduleResponse) error {
	args := m.Called(ctx, key, schedule)
	return args.Error(0)
}
