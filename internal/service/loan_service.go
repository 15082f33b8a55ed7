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

	"github.com/segyhp/credit-engine/internal/amortization"
	"github.com/segyhp/credit-engine/internal/clock"
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ratehistory"
	"github.com/segyhp/credit-engine/internal/repository"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
)

type LoanService struct {
	LoanRepo     repository.LoanRepository
	PaymentRepo  repository.PaymentRepository
	cache        repository.ScheduleCache
	clock        clock.Clock
	logger       zerolog.Logger
	validator    *validator.Validate
	fallbackRate decimal.Decimal
}

// NewLoanService wires the loan service. cache may be nil.
func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	cache repository.ScheduleCache,
	clk clock.Clock,
	logger zerolog.Logger,
	fallbackRate decimal.Decimal,
) *LoanService {
	return &LoanService{
		LoanRepo:     loanRepo,
		PaymentRepo:  paymentRepo,
		cache:        cache,
		clock:        clk,
		logger:       logger.With().Str("component", "loan_service").Logger(),
		validator:    newValidator(),
		fallbackRate: fallbackRate,
	}
}

// CreateLoan persists a new loan. Terms are immutable afterwards.
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}

	openingRate := s.fallbackRate
	if request.OpeningRate != nil {
		if request.OpeningRate.IsNegative() {
			return nil, customError.WrapInvalidInput(errors.New("opening rate must not be negative"))
		}
		openingRate = *request.OpeningRate
	}

	loan := &domain.Loan{
		ID:   uuid.NewString(),
		Name: request.Name,
		LoanTerms: domain.LoanTerms{
			Principal:    utils.RoundMoney(request.Principal),
			TenureMonths: request.TenureMonths,
			StartDate:    utils.TruncateToDay(request.StartDate),
			DueDay:       request.DueDay,
			OpeningRate:  openingRate,
		},
		CreatedAt: s.clock.Now(),
	}

	if err := s.LoanRepo.Create(ctx, loan); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info().
		Str("loan_id", loan.ID).
		Str("principal", loan.Principal.String()).
		Int("tenure_months", loan.TenureMonths).
		Msg("Loan created")

	return loan, nil
}

// AddRateChange appends a rate change. A second change on the same day is
// rejected; corrections are made by recording a change on another day.
func (s *LoanService) AddRateChange(ctx context.Context, request *domain.AddRateChangeRequest) (*domain.RateChangeRecord, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}

	if _, err := s.getLoan(ctx, request.LoanID); err != nil {
		return nil, err
	}

	existing, err := s.LoanRepo.ListRateChanges(ctx, request.LoanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	effective := utils.TruncateToDay(request.EffectiveDate)
	for _, r := range existing {
		if utils.DaysBetween(r.EffectiveDate, effective) == 0 {
			return nil, customError.WrapRateAlreadyDefined(request.LoanID, effective.Format(time.DateOnly))
		}
	}

	record := &domain.RateChangeRecord{
		ID:            uuid.NewString(),
		LoanID:        request.LoanID,
		AnnualRate:    request.AnnualRate,
		EffectiveDate: effective,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.LoanRepo.CreateRateChange(ctx, record); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info().
		Str("loan_id", record.LoanID).
		Str("annual_rate", record.AnnualRate.String()).
		Time("effective_date", record.EffectiveDate).
		Msg("Rate change recorded")

	return record, nil
}

// RecordPayment splits a payment against the loan's recorded history and
// appends it as the next installment.
func (s *LoanService) RecordPayment(ctx context.Context, request *domain.RecordPaymentRequest) (*domain.InstallmentPayment, error) {
	if err := validate(s.validator, request); err != nil {
		return nil, err
	}

	loan, history, payments, err := s.loadLoan(ctx, request.LoanID)
	if err != nil {
		return nil, err
	}

	paymentDate := utils.TruncateToDay(request.PaymentDate)
	if n := len(payments); n > 0 {
		last := payments[n-1]
		if !last.OutstandingAfter.IsPositive() {
			return nil, customError.WrapLoanSettled(loan.ID)
		}
		if utils.DaysBetween(last.PaymentDate, paymentDate) < 0 {
			return nil, customError.WrapInvalidInput(fmt.Errorf(
				"payment date %s is before the last recorded payment on %s",
				paymentDate.Format(time.DateOnly), last.PaymentDate.Format(time.DateOnly),
			))
		}
	}

	payment := amortization.NextInstallment(loan.LoanTerms, history, payments, paymentDate, request.Amount)
	payment.ID = uuid.NewString()
	payment.LoanID = loan.ID
	payment.CreatedAt = s.clock.Now()

	if err := s.PaymentRepo.Create(ctx, payment); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info().
		Str("loan_id", loan.ID).
		Int("sequence", payment.SequenceNumber).
		Str("principal", payment.PrincipalComponent.String()).
		Str("interest", payment.InterestComponent.String()).
		Str("outstanding", payment.OutstandingAfter.String()).
		Msg("Installment recorded")

	return payment, nil
}

// History recomputes the split of every recorded payment against the current
// rate history, for display.
func (s *LoanService) History(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	loan, history, payments, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	scheduled := make([]domain.ScheduledPayment, 0, len(payments))
	for _, p := range payments {
		scheduled = append(scheduled, domain.ScheduledPayment{Date: p.PaymentDate, EMIAmount: p.EMIAmount})
	}

	schedule := amortization.GenerateSchedule(amortization.ScheduleInput{
		LoanStart:    loan.StartDate,
		Principal:    loan.Principal,
		Payments:     scheduled,
		History:      history,
		DueDay:       loan.DueDay,
		FallbackRate: loan.OpeningRate,
	})
	for i, p := range schedule {
		p.ID = payments[i].ID
		p.LoanID = loan.ID
		p.CreatedAt = payments[i].CreatedAt
	}

	summary := amortization.Summarize(schedule)
	if len(schedule) == 0 {
		summary.FinalOutstanding = loan.Principal
	}

	return &domain.ScheduleResponse{
		LoanID:   loan.ID,
		EMI:      amortization.ComputeEMI(loan.Principal, loan.OpeningRate, loan.TenureMonths),
		Schedule: schedule,
		Summary:  summary,
	}, nil
}

// Projection returns the theoretical schedule of a loan. Results are cached
// under a fingerprint of the terms and rate history; cache failures are
// logged and never fail the call.
func (s *LoanService) Projection(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	records, err := s.LoanRepo.ListRateChanges(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	key := repository.ScheduleKey(loan.ID, loan.LoanTerms, records)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn().Err(customError.WrapCacheError(err)).Str("key", key).Msg("Schedule cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	schedule, emi := amortization.ProjectSchedule(loan.LoanTerms, ratehistory.New(records))
	for _, p := range schedule {
		p.LoanID = loan.ID
	}

	response := &domain.ScheduleResponse{
		LoanID:   loan.ID,
		EMI:      emi,
		Schedule: schedule,
		Summary:  amortization.Summarize(schedule),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, response); err != nil {
			s.logger.Warn().Err(customError.WrapCacheError(err)).Str("key", key).Msg("Schedule cache write failed")
		}
	}

	return response, nil
}

func (s *LoanService) getLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

func (s *LoanService) loadLoan(ctx context.Context, loanID string) (*domain.Loan, ratehistory.History, []*domain.InstallmentPayment, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, ratehistory.History{}, nil, err
	}

	records, err := s.LoanRepo.ListRateChanges(ctx, loanID)
	if err != nil {
		return nil, ratehistory.History{}, nil, customError.WrapDatabaseError(err)
	}

	payments, err := s.PaymentRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, ratehistory.History{}, nil, customError.WrapDatabaseError(err)
	}

	return loan, ratehistory.New(records), payments, nil
}

// Summary totals what has been paid on a loan so far
func (s *LoanService) Summary(ctx context.Context, loanID string) (*domain.ScheduleSummary, error) {
	history, err := s.History(ctx, loanID)
	if err != nil {
		return nil, err
	}
	summary := history.Summary
	return &summary, nil
}

// WarmProjections recomputes the projection of every loan so the cache holds
// the current rate history. It returns how many loans were refreshed.
func (s *LoanService) WarmProjections(ctx context.Context) (int, error) {
	ids, err := s.LoanRepo.ListIDs(ctx)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	warmed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}
		if _, err := s.Projection(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("loan_id", id).Msg("Failed to project schedule")
			continue
		}
		warmed++
	}

	return warmed, nil
}
