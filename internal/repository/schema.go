package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is written in the subset of SQL shared by postgres and sqlite.
// Timestamps are written in UTC; the columns carry no zone.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS loans (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		principal     NUMERIC(18,2) NOT NULL,
		tenure_months INTEGER NOT NULL,
		start_date    TIMESTAMP NOT NULL,
		due_day       INTEGER NOT NULL,
		opening_rate  NUMERIC(9,4) NOT NULL,
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rate_changes (
		id             TEXT PRIMARY KEY,
		loan_id        TEXT NOT NULL REFERENCES loans(id),
		annual_rate    NUMERIC(9,4) NOT NULL,
		effective_date TIMESTAMP NOT NULL,
		created_at     TIMESTAMP NOT NULL,
		UNIQUE (loan_id, effective_date)
	)`,
	`CREATE TABLE IF NOT EXISTS installment_payments (
		id                  TEXT PRIMARY KEY,
		loan_id             TEXT NOT NULL REFERENCES loans(id),
		sequence_number     INTEGER NOT NULL,
		payment_date        TIMESTAMP NOT NULL,
		emi_amount          NUMERIC(18,2) NOT NULL,
		principal_component NUMERIC(18,2) NOT NULL,
		interest_component  NUMERIC(18,2) NOT NULL,
		outstanding_after   NUMERIC(18,2) NOT NULL,
		created_at          TIMESTAMP NOT NULL,
		UNIQUE (loan_id, sequence_number)
	)`,
	`CREATE TABLE IF NOT EXISTS credit_accounts (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		statement_day   INTEGER NOT NULL,
		due_day         INTEGER NOT NULL,
		credit_limit    NUMERIC(18,2) NOT NULL DEFAULT 0,
		advance_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS installment_plans (
		id                         TEXT PRIMARY KEY,
		account_id                 TEXT NOT NULL REFERENCES credit_accounts(id),
		originating_transaction_id TEXT NOT NULL,
		description                TEXT NOT NULL,
		principal                  NUMERIC(18,2) NOT NULL,
		annual_rate                NUMERIC(9,4) NOT NULL,
		total_installments         INTEGER NOT NULL,
		monthly_emi                NUMERIC(18,2) NOT NULL,
		remaining_installments     INTEGER NOT NULL,
		first_due_date             TIMESTAMP NOT NULL,
		next_due_date              TIMESTAMP NOT NULL,
		created_at                 TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS statement_lines (
		id               TEXT PRIMARY KEY,
		account_id       TEXT NOT NULL REFERENCES credit_accounts(id),
		transaction_id   TEXT,
		plan_id          TEXT,
		description      TEXT NOT NULL,
		amount           NUMERIC(18,2),
		transaction_date TIMESTAMP NOT NULL,
		status           TEXT NOT NULL,
		paid_amount      NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_statement_lines_account_status
		ON statement_lines (account_id, status, transaction_date)`,
	`CREATE TABLE IF NOT EXISTS repayments (
		id              TEXT PRIMARY KEY,
		account_id      TEXT NOT NULL REFERENCES credit_accounts(id),
		amount          NUMERIC(18,2) NOT NULL,
		paid_at         TIMESTAMP NOT NULL,
		advance_created NUMERIC(18,2) NOT NULL,
		advance_used    NUMERIC(18,2) NOT NULL,
		shortfall       NUMERIC(18,2) NOT NULL,
		created_at      TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payment_allocations (
		id                TEXT PRIMARY KEY,
		repayment_id      TEXT NOT NULL REFERENCES repayments(id),
		statement_line_id TEXT NOT NULL,
		amount_paid       NUMERIC(18,2) NOT NULL,
		transaction_id    TEXT,
		plan_id           TEXT,
		description       TEXT NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
