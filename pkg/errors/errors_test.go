package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusinessError(t *testing.T) {
	err := WrapLoanNotFound("L1")

	assert.Equal(t, ErrCodeLoanNotFound, err.Code)
	assert.True(t, errors.Is(err, ErrLoanNotFound))
	assert.Contains(t, err.Error(), "LOAN_NOT_FOUND")
	assert.Contains(t, err.Error(), "L1")
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"account not found", WrapAccountNotFound("A1"), ErrCodeAccountNotFound},
		{"plan not found", WrapPlanNotFound("P1"), ErrCodePlanNotFound},
		{"insufficient funds", WrapInsufficientFunds("300.00"), ErrCodeInsufficientFunds},
		{"nothing selected", WrapNothingSelected(), ErrCodeNothingSelected},
		{"rate already defined", WrapRateAlreadyDefined("L1", "2024-03-01"), ErrCodeRateAlreadyDefined},
		{"loan settled", WrapLoanSettled("L1"), ErrCodeLoanSettled},
		{"plan in progress", WrapPlanInProgress("P1"), ErrCodePlanInProgress},
		{"wrapped again", fmt.Errorf("confirm: %w", WrapNothingSelected()), ErrCodeNothingSelected},
		{"plain error", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	invalid := WrapInvalidInput(errors.New("principal must be positive"))
	assert.True(t, errors.Is(invalid, ErrInvalidInput))
	assert.Contains(t, invalid.Error(), "principal must be positive")

	db := WrapDatabaseError(sql.ErrConnDone)
	assert.True(t, errors.Is(db, sql.ErrConnDone))
	assert.Equal(t, ErrCodeDatabaseError, db.Code)

	conflict := WrapConflict(errors.New("plan moved"))
	assert.True(t, errors.Is(conflict, ErrConflict))

	cache := WrapCacheError(errors.New("dial tcp"))
	assert.Equal(t, ErrCodeCacheError, cache.Code)
}
