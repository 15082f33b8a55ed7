package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound       = errors.New("loan not found")
	ErrAccountNotFound    = errors.New("credit account not found")
	ErrPlanNotFound       = errors.New("installment plan not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientFunds  = errors.New("repayment does not cover selected dues")
	ErrNothingSelected    = errors.New("no due items selected")
	ErrRateAlreadyDefined = errors.New("rate change already recorded for date")
	ErrLoanSettled        = errors.New("loan has no outstanding principal")
	ErrPlanInProgress     = errors.New("installment plan already has paid installments")
	ErrConflict           = errors.New("data changed since it was read")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound       = "LOAN_NOT_FOUND"
	ErrCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ErrCodePlanNotFound       = "PLAN_NOT_FOUND"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeNothingSelected    = "NOTHING_SELECTED"
	ErrCodeRateAlreadyDefined = "RATE_ALREADY_DEFINED"
	ErrCodeLoanSettled        = "LOAN_SETTLED"
	ErrCodePlanInProgress     = "PLAN_IN_PROGRESS"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
	ErrCodeCacheError         = "CACHE_ERROR"
)

// CodeOf returns the business code carried by err, or "" when err is not a BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapAccountNotFound(accountID string) *BusinessError {
	return NewBusinessError(
		ErrCodeAccountNotFound,
		fmt.Sprintf("Credit account with ID %s not found", accountID),
		ErrAccountNotFound,
	)
}

func WrapPlanNotFound(planID string) *BusinessError {
	return NewBusinessError(
		ErrCodePlanNotFound,
		fmt.Sprintf("Installment plan with ID %s not found", planID),
		ErrPlanNotFound,
	)
}

func WrapInvalidInput(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidInput,
		"request failed validation",
		fmt.Errorf("%w: %v", ErrInvalidInput, err),
	)
}

func WrapInsufficientFunds(shortfall string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientFunds,
		fmt.Sprintf("Repayment is short by %s and the advance balance cannot cover it", shortfall),
		ErrInsufficientFunds,
	)
}

func WrapNothingSelected() *BusinessError {
	return NewBusinessError(
		ErrCodeNothingSelected,
		"None of the selected items are due on this account",
		ErrNothingSelected,
	)
}

func WrapRateAlreadyDefined(loanID, date string) *BusinessError {
	return NewBusinessError(
		ErrCodeRateAlreadyDefined,
		fmt.Sprintf("Loan %s already has a rate change effective %s", loanID, date),
		ErrRateAlreadyDefined,
	)
}

func WrapLoanSettled(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanSettled,
		fmt.Sprintf("Loan with ID %s has no outstanding principal", loanID),
		ErrLoanSettled,
	)
}

func WrapPlanInProgress(planID string) *BusinessError {
	return NewBusinessError(
		ErrCodePlanInProgress,
		fmt.Sprintf("Installment plan %s has paid installments and cannot be cancelled", planID),
		ErrPlanInProgress,
	)
}

// WrapConflict is returned when a confirmation raced another write; the
// caller should reload and retry.
func WrapConflict(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeConflict,
		"Data changed since it was read, reload and try again",
		fmt.Errorf("%w: %v", ErrConflict, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
