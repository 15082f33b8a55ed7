package repository

import (
	"context"

	"github.com/segyhp/credit-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := r.db.Rebind(`
		INSERT INTO loans (id, name, principal, tenure_months, start_date, due_day, opening_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		loan.ID,
		loan.Name,
		loan.Principal,
		loan.TenureMonths,
		loan.StartDate.UTC(),
		loan.DueDay,
		loan.OpeningRate,
		loan.CreatedAt.UTC(),
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := r.db.Rebind(`
		SELECT id, name, principal, tenure_months, start_date, due_day, opening_rate, created_at
		FROM loans
		WHERE id = ?
	`)

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, loanID); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM loans ORDER BY created_at, id`); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *loanRepository) ListRateChanges(ctx context.Context, loanID string) ([]domain.RateChangeRecord, error) {
	query := r.db.Rebind(`
		SELECT id, loan_id, annual_rate, effective_date, created_at
		FROM rate_changes
		WHERE loan_id = ?
		ORDER BY effective_date, created_at
	`)

	var records []domain.RateChangeRecord
	if err := r.db.SelectContext(ctx, &records, query, loanID); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *loanRepository) CreateRateChange(ctx context.Context, record *domain.RateChangeRecord) error {
	query := r.db.Rebind(`
		INSERT INTO rate_changes (id, loan_id, annual_rate, effective_date, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.LoanID,
		record.AnnualRate,
		record.EffectiveDate.UTC(),
		record.CreatedAt.UTC(),
	)

	return err
}
