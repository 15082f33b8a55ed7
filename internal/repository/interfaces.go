package repository

import (
	"context"
	"errors"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrStaleSnapshot is returned when a write was computed from data that has
// since changed underneath it.
var ErrStaleSnapshot = errors.New("snapshot is stale")

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, loanID string) (*domain.Loan, error)

	// ListIDs retrieves the ids of every loan, oldest first
	ListIDs(ctx context.Context) ([]string, error)

	// ListRateChanges retrieves rate changes ordered by effective date
	ListRateChanges(ctx context.Context, loanID string) ([]domain.RateChangeRecord, error)

	// CreateRateChange appends a rate change
	CreateRateChange(ctx context.Context, record *domain.RateChangeRecord) error
}

// PaymentRepository defines the interface for installment payment records
type PaymentRepository interface {
	// Create appends an installment payment record
	Create(ctx context.Context, payment *domain.InstallmentPayment) error

	// GetByLoanID retrieves all payments for a loan ordered by sequence number
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.InstallmentPayment, error)
}

// StatementRepository defines the interface for credit account data operations
type StatementRepository interface {
	CreateCreditAccount(ctx context.Context, account *domain.CreditAccount) error
	GetCreditAccount(ctx context.Context, accountID string) (*domain.CreditAccount, error)
	ListCreditAccounts(ctx context.Context) ([]*domain.CreditAccount, error)

	// GetAdvanceBalance reads the current advance balance snapshot
	GetAdvanceBalance(ctx context.Context, accountID string) (decimal.Decimal, error)

	CreateLine(ctx context.Context, line *domain.StatementLineItem) error

	// GetPendingLines retrieves pending and partial lines dated on or before
	// upTo (whole day), or all of them when upTo is nil.
	GetPendingLines(ctx context.Context, accountID string, upTo *time.Time) ([]domain.StatementLineItem, error)

	// GetLinesByIDs retrieves lines regardless of status
	GetLinesByIDs(ctx context.Context, ids []string) ([]domain.StatementLineItem, error)

	CreatePlan(ctx context.Context, plan *domain.InstallmentPlan) error
	GetPlan(ctx context.Context, planID string) (*domain.InstallmentPlan, error)
	ListPlans(ctx context.Context, accountID string) ([]domain.InstallmentPlan, error)
	DeletePlan(ctx context.Context, planID string) error

	GetAllocationsByRepayment(ctx context.Context, repaymentID string) ([]domain.PaymentAllocation, error)

	// ApplyRepayment persists a confirmed repayment atomically: the repayment,
	// its allocations, materialized installment lines, settled line statuses,
	// plan progress and the advance balance delta.
	ApplyRepayment(ctx context.Context, repayment *domain.Repayment) error
}

// ScheduleCache stores projected schedules keyed by content fingerprint
type ScheduleCache interface {
	Get(ctx context.Context, key string) (*domain.ScheduleResponse, bool, error)
	Set(ctx context.Context, key string, schedule *domain.ScheduleResponse) error
}
