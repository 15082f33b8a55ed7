package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/segyhp/credit-engine/internal/allocation"
	"github.com/segyhp/credit-engine/internal/amortization"
	"github.com/segyhp/credit-engine/internal/billing"
	"github.com/segyhp/credit-engine/internal/clock"
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/repository"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
)

// AccountDefaults fill in the billing anchors a new account leaves unset
type AccountDefaults struct {
	StatementDay int
	DueDay       int
}

type StatementService struct {
	StatementRepo repository.StatementRepository
	calculator    *billing.Calculator
	clock         clock.Clock
	logger        zerolog.Logger
	validator     *validator.Validate
	defaults      AccountDefaults
}

func NewStatementService(
	statementRepo repository.StatementRepository,
	clk clock.Clock,
	logger zerolog.Logger,
	defaults AccountDefaults,
) *StatementService {
	return &StatementService{
		StatementRepo: statementRepo,
		calculator:    billing.NewCalculator(clk),
		clock:         clk,
		logger:        logger.With().Str("component", "statement_service").Logger(),
		validator:     newValidator(),
		defaults:      defaults,
	}
}

// OpenAccount creates a credit account with a zero advance balance
func (s *StatementService) OpenAccount(ctx context.Context, request *domain.OpenAccountRequest) (*domain.CreditAccount, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}

	account := &domain.CreditAccount{
		ID:             uuid.NewString(),
		Name:           request.Name,
		StatementDay:   request.StatementDay,
		DueDay:         request.DueDay,
		CreditLimit:    utils.RoundMoney(request.CreditLimit),
		AdvanceBalance: decimal.Zero,
		CreatedAt:      s.clock.Now(),
	}
	if account.StatementDay == 0 {
		account.StatementDay = s.defaults.StatementDay
	}
	if account.DueDay == 0 {
		account.DueDay = s.defaults.DueDay
	}

	if err := s.StatementRepo.CreateCreditAccount(ctx, account); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Int("statement_day", account.StatementDay).
		Int("due_day", account.DueDay).
		Msg("Credit account opened")

	return account, nil
}

// AddStatementLine records a purchase or charge on an account
func (s *StatementService) AddStatementLine(ctx context.Context, request *domain.AddStatementLineRequest) (*domain.StatementLineItem, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}

	if _, err := s.getAccount(ctx, request.AccountID); err != nil {
		return nil, err
	}

	var txID *string
	if request.TransactionID != "" {
		id := request.TransactionID
		txID = &id
	}

	line := &domain.StatementLineItem{
		ID:              uuid.NewString(),
		AccountID:       request.AccountID,
		TransactionID:   txID,
		Description:     request.Description,
		Amount:          decimal.NewNullDecimal(utils.RoundMoney(request.Amount)),
		TransactionDate: request.TransactionDate,
		Status:          domain.LineStatusPending,
		PaidAmount:      decimal.Zero,
		CreatedAt:       s.clock.Now(),
	}

	if err := s.StatementRepo.CreateLine(ctx, line); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return line, nil
}

// ConvertToInstallments turns a purchase into a fixed-EMI plan. From then on
// the purchase line is hidden from due items in favour of the installments.
func (s *StatementService) ConvertToInstallments(ctx context.Context, request *domain.ConvertToInstallmentsRequest) (*domain.InstallmentPlan, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}

	if _, err := s.getAccount(ctx, request.AccountID); err != nil {
		return nil, err
	}

	plans, err := s.StatementRepo.ListPlans(ctx, request.AccountID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	for _, p := range plans {
		if p.OriginatingTransactionID == request.TransactionID {
			return nil, customError.WrapInvalidInput(
				fmt.Errorf("transaction %s is already converted by plan %s", request.TransactionID, p.ID),
			)
		}
	}

	firstDue := utils.TruncateToDay(request.FirstDueDate)
	plan := &domain.InstallmentPlan{
		ID:                       uuid.NewString(),
		AccountID:                request.AccountID,
		OriginatingTransactionID: request.TransactionID,
		Description:              request.Description,
		Principal:                utils.RoundMoney(request.Principal),
		AnnualRate:               request.AnnualRate,
		TotalInstallments:        request.Installments,
		MonthlyEMI:               utils.RoundMoney(amortization.ComputeEMI(request.Principal, request.AnnualRate, request.Installments)),
		RemainingInstallments:    request.Installments,
		FirstDueDate:             firstDue,
		NextDueDate:              firstDue,
		CreatedAt:                s.clock.Now(),
	}

	if err := s.StatementRepo.CreatePlan(ctx, plan); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info().
		Str("account_id", plan.AccountID).
		Str("plan_id", plan.ID).
		Str("transaction_id", plan.OriginatingTransactionID).
		Str("monthly_emi", plan.MonthlyEMI.String()).
		Int("installments", plan.TotalInstallments).
		Msg("Purchase converted to installments")

	return plan, nil
}

// CancelPlan removes a plan that has no paid installments, which brings the
// original purchase back into due items.
func (s *StatementService) CancelPlan(ctx context.Context, planID string) error {
	plan, err := s.StatementRepo.GetPlan(ctx, planID)
	if errors.Is(err, sql.ErrNoRows) {
		return customError.WrapPlanNotFound(planID)
	}
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	if plan.RemainingInstallments != plan.TotalInstallments {
		return customError.WrapPlanInProgress(planID)
	}

	if err := s.StatementRepo.DeletePlan(ctx, planID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapPlanNotFound(planID)
		}
		return customError.WrapDatabaseError(err)
	}

	s.logger.Info().Str("plan_id", planID).Str("account_id", plan.AccountID).Msg("Installment plan cancelled")
	return nil
}

// DueItems lists what the account owes up to periodEnd (nil for everything).
// With editingRepaymentID set, lines that repayment already paid stay listed.
func (s *StatementService) DueItems(ctx context.Context, accountID string, periodEnd *time.Time, editingRepaymentID string) (*allocation.GatherResult, error) {
	if _, err := s.getAccount(ctx, accountID); err != nil {
		return nil, err
	}

	result, err := s.gather(ctx, accountID, periodEnd, editingRepaymentID)
	if err != nil {
		return nil, err
	}
	s.logWarnings(accountID, result.Warnings)
	return result, nil
}

// PreviewAllocation computes how a repayment would be distributed without
// writing anything.
func (s *StatementService) PreviewAllocation(ctx context.Context, request *domain.AllocationRequest) (*domain.AllocationResult, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}

	result, _, err := s.allocate(ctx, request)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmAllocation recomputes the allocation against fresh data and
// persists it in one transaction. A shortfall blocks the confirmation unless
// the request accepts it.
func (s *StatementService) ConfirmAllocation(ctx context.Context, request *domain.AllocationRequest) (*domain.Repayment, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}
	if request.EditingRepaymentID != "" {
		return nil, customError.WrapInvalidInput(errors.New("confirmed repayments cannot be edited"))
	}

	result, items, err := s.allocate(ctx, request)
	if err != nil {
		return nil, err
	}
	if len(result.Allocations) == 0 {
		return nil, customError.WrapNothingSelected()
	}
	if result.HasShortfall() && !request.AcceptShortfall {
		return nil, customError.WrapInsufficientFunds(result.Shortfall.StringFixed(2))
	}

	now := s.clock.Now()
	paidAt := request.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	repayment := &domain.Repayment{
		ID:             uuid.NewString(),
		AccountID:      request.AccountID,
		Amount:         utils.RoundMoney(request.Amount),
		PaidAt:         paidAt,
		AdvanceCreated: result.AdvanceCreated,
		AdvanceUsed:    result.AdvanceUsed,
		Shortfall:      result.Shortfall,
		CreatedAt:      now,
	}

	plans := make(map[string]domain.InstallmentPlan)
	for _, a := range result.Allocations {
		if a.Virtual {
			plans[a.StatementLineID] = domain.InstallmentPlan{}
		}
	}
	if len(plans) > 0 {
		if err := s.resolvePlans(ctx, request.AccountID, items, plans); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]allocation.DueItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	for _, a := range result.Allocations {
		a.ID = uuid.NewString()
		a.RepaymentID = repayment.ID

		item := byID[a.StatementLineID]
		if a.Virtual {
			line := item.StatementLineItem
			line.ID = uuid.NewString()
			line.Status = domain.LineStatusPaid
			line.PaidAmount = a.AmountPaid
			line.CreatedAt = now
			repayment.MaterializedLines = append(repayment.MaterializedLines, line)
			repayment.PlanUpdates = append(repayment.PlanUpdates, plans[item.ID].Advanced())
			a.StatementLineID = line.ID
		} else {
			repayment.SettledLineIDs = append(repayment.SettledLineIDs, a.StatementLineID)
		}
		repayment.Allocations = append(repayment.Allocations, a)
	}

	if err := s.StatementRepo.ApplyRepayment(ctx, repayment); err != nil {
		if errors.Is(err, repository.ErrStaleSnapshot) {
			return nil, customError.WrapConflict(err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapAccountNotFound(request.AccountID)
		}
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info().
		Str("account_id", repayment.AccountID).
		Str("repayment_id", repayment.ID).
		Str("amount", repayment.Amount.String()).
		Int("allocations", len(repayment.Allocations)).
		Str("advance_created", repayment.AdvanceCreated.String()).
		Str("advance_used", repayment.AdvanceUsed.String()).
		Str("shortfall", repayment.Shortfall.String()).
		Msg("Repayment confirmed")

	return repayment, nil
}

// CycleStatus reports the billing position of an account as of now.
func (s *StatementService) CycleStatus(ctx context.Context, accountID string) (*domain.CycleStatus, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.cycleStatus(ctx, account)
}

// Sweep computes the cycle status of every account. Failures on one account
// are logged and do not stop the others.
func (s *StatementService) Sweep(ctx context.Context) ([]*domain.CycleStatus, error) {
	accounts, err := s.StatementRepo.ListCreditAccounts(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	statuses := make([]*domain.CycleStatus, 0, len(accounts))
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}

		status, err := s.cycleStatus(ctx, account)
		if err != nil {
			s.logger.Error().Err(err).Str("account_id", account.ID).Msg("Failed to compute cycle status")
			continue
		}
		statuses = append(statuses, status)

		event := s.logger.Info()
		if status.Overdue {
			event = s.logger.Warn()
		}
		event.
			Str("account_id", status.AccountID).
			Time("next_due_date", status.NextDueDate).
			Int("days_until_due", status.DaysUntilDue).
			Int("items_due", status.ItemsDue).
			Str("amount_due", status.AmountDue.String()).
			Bool("overdue", status.Overdue).
			Msg("Cycle status")
	}

	return statuses, nil
}

func (s *StatementService) cycleStatus(ctx context.Context, account *domain.CreditAccount) (*domain.CycleStatus, error) {
	current := s.calculator.CurrentCycle(account.StatementDay)
	previous := s.calculator.PreviousCycle(account.StatementDay)

	periodEnd := previous.StatementDate
	gathered, err := s.gather(ctx, account.ID, &periodEnd, "")
	if err != nil {
		return nil, err
	}

	amountDue := decimal.Zero
	itemsDue := 0
	for _, item := range gathered.Items {
		if !item.Amount.Valid {
			continue
		}
		amountDue = amountDue.Add(item.Amount.Decimal)
		itemsDue++
	}

	status := &domain.CycleStatus{
		AccountID:        account.ID,
		CycleStart:       current.Start,
		CycleEnd:         current.End,
		NextDueDate:      s.calculator.NextDueDate(account.StatementDay, account.DueDay),
		DaysUntilDue:     s.calculator.DaysUntilDue(account.StatementDay, account.DueDay),
		StatementDate:    previous.StatementDate,
		StatementDueDate: billing.StatementDueDate(previous.StatementDate, account.DueDay),
		AmountDue:        utils.RoundMoney(amountDue),
		ItemsDue:         itemsDue,
		Warnings:         gathered.Warnings,
	}
	status.Overdue = s.calculator.IsOverdue(account.StatementDay, account.DueDay) ||
		(itemsDue > 0 && s.calculator.IsStatementOverdue(previous.StatementDate, account.DueDay))

	return status, nil
}

func (s *StatementService) allocate(ctx context.Context, request *domain.AllocationRequest) (*domain.AllocationResult, []allocation.DueItem, error) {
	if _, err := s.getAccount(ctx, request.AccountID); err != nil {
		return nil, nil, err
	}

	gathered, err := s.gather(ctx, request.AccountID, request.PeriodEnd, request.EditingRepaymentID)
	if err != nil {
		return nil, nil, err
	}

	advance, err := s.StatementRepo.GetAdvanceBalance(ctx, request.AccountID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	result := allocation.Allocate(gathered.Items, request.SelectedIDs, request.Amount, advance)
	result.Warnings = append(gathered.Warnings, result.Warnings...)
	s.logWarnings(request.AccountID, result.Warnings)

	return &result, gathered.Items, nil
}

func (s *StatementService) gather(ctx context.Context, accountID string, periodEnd *time.Time, editingRepaymentID string) (*allocation.GatherResult, error) {
	plans, err := s.StatementRepo.ListPlans(ctx, accountID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	lines, err := s.StatementRepo.GetPendingLines(ctx, accountID, periodEnd)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	in := allocation.GatherInput{
		AccountID:    accountID,
		PeriodEnd:    periodEnd,
		Plans:        plans,
		PendingLines: lines,
	}

	if editingRepaymentID != "" {
		prior, err := s.StatementRepo.GetAllocationsByRepayment(ctx, editingRepaymentID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		in.PriorAllocations = prior

		if ids := allocation.ReferencedLineIDs(prior); len(ids) > 0 {
			referenced, err := s.StatementRepo.GetLinesByIDs(ctx, ids)
			if err != nil {
				return nil, customError.WrapDatabaseError(err)
			}
			in.ReferencedLines = referenced
		}
	}

	result := allocation.GatherDueItems(in)
	return &result, nil
}

// resolvePlans fills plans, keyed by virtual line id, with the plan each
// virtual item was built from.
func (s *StatementService) resolvePlans(ctx context.Context, accountID string, items []allocation.DueItem, plans map[string]domain.InstallmentPlan) error {
	stored, err := s.StatementRepo.ListPlans(ctx, accountID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	byPlanID := make(map[string]domain.InstallmentPlan, len(stored))
	for _, p := range stored {
		byPlanID[p.ID] = p
	}

	for _, item := range items {
		if _, wanted := plans[item.ID]; !wanted || item.PlanID == nil {
			continue
		}
		plan, ok := byPlanID[*item.PlanID]
		if !ok || allocation.VirtualLineID(plan.ID, plan.CurrentInstallment()) != item.ID {
			return customError.WrapConflict(fmt.Errorf("installment %s is no longer due", item.ID))
		}
		plans[item.ID] = plan
	}
	return nil
}

func (s *StatementService) getAccount(ctx context.Context, accountID string) (*domain.CreditAccount, error) {
	account, err := s.StatementRepo.GetCreditAccount(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapAccountNotFound(accountID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return account, nil
}

func (s *StatementService) logWarnings(accountID string, warnings []domain.Warning) {
	for _, w := range warnings {
		s.logger.Warn().
			Str("account_id", accountID).
			Str("code", string(w.Code)).
			Str("ref", w.Ref).
			Msg(w.Message)
	}
}
