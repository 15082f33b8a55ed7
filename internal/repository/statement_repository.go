package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const lineColumns = `id, account_id, transaction_id, plan_id, description, amount,
	transaction_date, status, paid_amount, created_at`

const planColumns = `id, account_id, originating_transaction_id, description, principal, annual_rate,
	total_installments, monthly_emi, remaining_installments, first_due_date, next_due_date, created_at`

// lineRow scans the amount as text so that a missing or malformed value
// surfaces as an invalid amount instead of failing the whole query.
type lineRow struct {
	ID              string          `db:"id"`
	AccountID       string          `db:"account_id"`
	TransactionID   sql.NullString  `db:"transaction_id"`
	PlanID          sql.NullString  `db:"plan_id"`
	Description     string          `db:"description"`
	Amount          sql.NullString  `db:"amount"`
	TransactionDate time.Time       `db:"transaction_date"`
	Status          string          `db:"status"`
	PaidAmount      decimal.Decimal `db:"paid_amount"`
	CreatedAt       time.Time       `db:"created_at"`
}

func (r lineRow) toDomain() domain.StatementLineItem {
	line := domain.StatementLineItem{
		ID:              r.ID,
		AccountID:       r.AccountID,
		Description:     r.Description,
		TransactionDate: r.TransactionDate,
		Status:          domain.LineStatus(r.Status),
		PaidAmount:      r.PaidAmount,
		CreatedAt:       r.CreatedAt,
	}
	if r.TransactionID.Valid {
		id := r.TransactionID.String
		line.TransactionID = &id
	}
	if r.PlanID.Valid {
		id := r.PlanID.String
		line.PlanID = &id
	}
	if r.Amount.Valid {
		if amount, err := utils.DecimalFromString(r.Amount.String); err == nil {
			line.Amount = decimal.NewNullDecimal(amount)
		}
	}
	return line
}

func toLines(rows []lineRow) []domain.StatementLineItem {
	lines := make([]domain.StatementLineItem, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.toDomain())
	}
	return lines
}

type statementRepository struct {
	db *sqlx.DB
}

func NewStatementRepository(db *sqlx.DB) StatementRepository {
	return &statementRepository{db: db}
}

func (r *statementRepository) CreateCreditAccount(ctx context.Context, account *domain.CreditAccount) error {
	query := r.db.Rebind(`
		INSERT INTO credit_accounts (id, name, statement_day, due_day, credit_limit, advance_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.StatementDay,
		account.DueDay,
		account.CreditLimit,
		account.AdvanceBalance,
		account.CreatedAt.UTC(),
	)

	return err
}

func (r *statementRepository) GetCreditAccount(ctx context.Context, accountID string) (*domain.CreditAccount, error) {
	query := r.db.Rebind(`
		SELECT id, name, statement_day, due_day, credit_limit, advance_balance, created_at
		FROM credit_accounts
		WHERE id = ?
	`)

	var account domain.CreditAccount
	if err := r.db.GetContext(ctx, &account, query, accountID); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *statementRepository) ListCreditAccounts(ctx context.Context) ([]*domain.CreditAccount, error) {
	query := `
		SELECT id, name, statement_day, due_day, credit_limit, advance_balance, created_at
		FROM credit_accounts
		ORDER BY created_at, id
	`

	var accounts []*domain.CreditAccount
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *statementRepository) GetAdvanceBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	query := r.db.Rebind(`SELECT advance_balance FROM credit_accounts WHERE id = ?`)

	var balance decimal.Decimal
	if err := r.db.GetContext(ctx, &balance, query, accountID); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

func (r *statementRepository) CreateLine(ctx context.Context, line *domain.StatementLineItem) error {
	return insertLine(ctx, r.db, line)
}

func (r *statementRepository) GetPendingLines(ctx context.Context, accountID string, upTo *time.Time) ([]domain.StatementLineItem, error) {
	query := `SELECT ` + lineColumns + `
		FROM statement_lines
		WHERE account_id = ? AND status IN (?, ?)`
	args := []interface{}{accountID, domain.LineStatusPending, domain.LineStatusPartial}

	if upTo != nil {
		query += ` AND transaction_date <= ?`
		args = append(args, utils.EndOfDay(*upTo).UTC())
	}
	query += ` ORDER BY transaction_date DESC, id`

	var rows []lineRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return toLines(rows), nil
}

func (r *statementRepository) GetLinesByIDs(ctx context.Context, ids []string) ([]domain.StatementLineItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+lineColumns+` FROM statement_lines WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}

	var rows []lineRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	return toLines(rows), nil
}

func (r *statementRepository) CreatePlan(ctx context.Context, plan *domain.InstallmentPlan) error {
	query := r.db.Rebind(`INSERT INTO installment_plans (` + planColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		plan.ID,
		plan.AccountID,
		plan.OriginatingTransactionID,
		plan.Description,
		plan.Principal,
		plan.AnnualRate,
		plan.TotalInstallments,
		plan.MonthlyEMI,
		plan.RemainingInstallments,
		plan.FirstDueDate.UTC(),
		plan.NextDueDate.UTC(),
		plan.CreatedAt.UTC(),
	)

	return err
}

func (r *statementRepository) GetPlan(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	query := r.db.Rebind(`SELECT ` + planColumns + ` FROM installment_plans WHERE id = ?`)

	var plan domain.InstallmentPlan
	if err := r.db.GetContext(ctx, &plan, query, planID); err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *statementRepository) ListPlans(ctx context.Context, accountID string) ([]domain.InstallmentPlan, error) {
	query := r.db.Rebind(`SELECT ` + planColumns + `
		FROM installment_plans
		WHERE account_id = ?
		ORDER BY next_due_date, id`)

	var plans []domain.InstallmentPlan
	if err := r.db.SelectContext(ctx, &plans, query, accountID); err != nil {
		return nil, err
	}

	return plans, nil
}

func (r *statementRepository) DeletePlan(ctx context.Context, planID string) error {
	query := r.db.Rebind(`DELETE FROM installment_plans WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query, planID)
	if err != nil {
		return err
	}
	return expectRows(res, sql.ErrNoRows)
}

func (r *statementRepository) GetAllocationsByRepayment(ctx context.Context, repaymentID string) ([]domain.PaymentAllocation, error) {
	query := r.db.Rebind(`
		SELECT id, repayment_id, statement_line_id, amount_paid, transaction_id, plan_id, description
		FROM payment_allocations
		WHERE repayment_id = ?
		ORDER BY id
	`)

	var allocations []domain.PaymentAllocation
	if err := r.db.SelectContext(ctx, &allocations, query, repaymentID); err != nil {
		return nil, err
	}

	return allocations, nil
}

func (r *statementRepository) ApplyRepayment(ctx context.Context, repayment *domain.Repayment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO repayments (id, account_id, amount, paid_at, advance_created, advance_used, shortfall, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`),
		repayment.ID,
		repayment.AccountID,
		repayment.Amount,
		repayment.PaidAt.UTC(),
		repayment.AdvanceCreated,
		repayment.AdvanceUsed,
		repayment.Shortfall,
		repayment.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert repayment: %w", err)
	}

	for i := range repayment.MaterializedLines {
		if err = insertLine(ctx, tx, &repayment.MaterializedLines[i]); err != nil {
			return fmt.Errorf("materialize line: %w", err)
		}
	}

	settle := tx.Rebind(`
		UPDATE statement_lines
		SET status = ?, paid_amount = amount
		WHERE id = ? AND account_id = ? AND status IN (?, ?)
	`)
	for _, id := range repayment.SettledLineIDs {
		res, err := tx.ExecContext(ctx, settle,
			domain.LineStatusPaid, id, repayment.AccountID,
			domain.LineStatusPending, domain.LineStatusPartial,
		)
		if err != nil {
			return fmt.Errorf("settle line %s: %w", id, err)
		}
		if err = expectRows(res, ErrStaleSnapshot); err != nil {
			return fmt.Errorf("settle line %s: %w", id, err)
		}
	}

	allocate := tx.Rebind(`
		INSERT INTO payment_allocations (id, repayment_id, statement_line_id, amount_paid, transaction_id, plan_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for _, a := range repayment.Allocations {
		_, err = tx.ExecContext(ctx, allocate,
			a.ID, repayment.ID, a.StatementLineID, a.AmountPaid, a.TransactionID, a.PlanID, a.Description,
		)
		if err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	advancePlan := tx.Rebind(`
		UPDATE installment_plans
		SET remaining_installments = ?, next_due_date = ?
		WHERE id = ? AND remaining_installments = ?
	`)
	for _, p := range repayment.PlanUpdates {
		res, err := tx.ExecContext(ctx, advancePlan,
			p.RemainingInstallments, p.NextDueDate.UTC(), p.ID, p.RemainingInstallments+1,
		)
		if err != nil {
			return fmt.Errorf("advance plan %s: %w", p.ID, err)
		}
		if err = expectRows(res, ErrStaleSnapshot); err != nil {
			return fmt.Errorf("advance plan %s: %w", p.ID, err)
		}
	}

	// The delta is applied to the stored balance, never a value read earlier.
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE credit_accounts
		SET advance_balance = CASE
			WHEN advance_balance + ? - ? < 0 THEN 0
			ELSE advance_balance + ? - ?
		END
		WHERE id = ?
	`),
		repayment.AdvanceCreated, repayment.AdvanceUsed,
		repayment.AdvanceCreated, repayment.AdvanceUsed,
		repayment.AccountID,
	)
	if err != nil {
		return fmt.Errorf("update advance balance: %w", err)
	}
	if err = expectRows(res, sql.ErrNoRows); err != nil {
		return err
	}

	return tx.Commit()
}

func insertLine(ctx context.Context, db sqlx.ExtContext, line *domain.StatementLineItem) error {
	query := db.Rebind(`INSERT INTO statement_lines (` + lineColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := db.ExecContext(ctx, query,
		line.ID,
		line.AccountID,
		line.TransactionID,
		line.PlanID,
		line.Description,
		line.Amount,
		line.TransactionDate.UTC(),
		line.Status,
		line.PaidAmount,
		line.CreatedAt.UTC(),
	)

	return err
}

func expectRows(res sql.Result, errNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNone
	}
	return nil
}
