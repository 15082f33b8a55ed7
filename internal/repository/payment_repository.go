package repository

import (
	"context"

	"github.com/segyhp/credit-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create appends a payment. The (loan_id, sequence_number) unique key rejects
// a concurrent writer that computed the same sequence number.
func (r *paymentRepository) Create(ctx context.Context, payment *domain.InstallmentPayment) error {
	query := r.db.Rebind(`
		INSERT INTO installment_payments (id, loan_id, sequence_number, payment_date, emi_amount,
			principal_component, interest_component, outstanding_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		payment.ID,
		payment.LoanID,
		payment.SequenceNumber,
		payment.PaymentDate.UTC(),
		payment.EMIAmount,
		payment.PrincipalComponent,
		payment.InterestComponent,
		payment.OutstandingAfter,
		payment.CreatedAt.UTC(),
	)

	return err
}

func (r *paymentRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.InstallmentPayment, error) {
	query := r.db.Rebind(`
		SELECT id, loan_id, sequence_number, payment_date, emi_amount,
			principal_component, interest_component, outstanding_after, created_at
		FROM installment_payments
		WHERE loan_id = ?
		ORDER BY sequence_number
	`)

	var payments []*domain.InstallmentPayment
	if err := r.db.SelectContext(ctx, &payments, query, loanID); err != nil {
		return nil, err
	}

	return payments, nil
}
