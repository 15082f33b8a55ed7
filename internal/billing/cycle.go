// Package billing derives statement windows and due dates from the
// day-of-month anchors of a credit account.
package billing

import (
	"time"

	"github.com/segyhp/credit-engine/internal/clock"
	"github.com/segyhp/credit-engine/pkg/utils"
)

// Cycle is one statement window. End is inclusive (23:59:59 of the
// statement date).
type Cycle struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	StatementDate time.Time `json:"statement_date"`
}

// Contains reports whether t falls inside the cycle, bounds included
func (c Cycle) Contains(t time.Time) bool {
	return !t.Before(c.Start) && !t.After(c.End)
}

// Calculator answers billing questions relative to its clock
type Calculator struct {
	clock clock.Clock
}

func NewCalculator(c clock.Clock) *Calculator {
	return &Calculator{clock: c}
}

// CurrentCycle returns the statement window containing today. The statement
// day is clamped per month, and the statement date itself closes the cycle
// it belongs to.
func (c *Calculator) CurrentCycle(statementDay int) Cycle {
	return cycleContaining(c.clock.Now(), statementDay)
}

// PreviousCycle returns the most recently closed statement window
func (c *Calculator) PreviousCycle(statementDay int) Cycle {
	current := c.CurrentCycle(statementDay)
	return cycleContaining(current.Start.AddDate(0, 0, -1), statementDay)
}

// InCurrentCycle is an inclusive range test against CurrentCycle
func (c *Calculator) InCurrentCycle(date time.Time, statementDay int) bool {
	return c.CurrentCycle(statementDay).Contains(date)
}

// NextDueDate returns this month's clamped due date while today has not
// passed it, otherwise next month's. The result depends on dueDay alone.
func (c *Calculator) NextDueDate(statementDay, dueDay int) time.Time {
	now := c.clock.Now()
	due := utils.ClampedDate(now.Year(), now.Month(), dueDay, now.Location())
	if now.Day() <= due.Day() {
		return due
	}
	return utils.ClampedDate(now.Year(), now.Month()+1, dueDay, now.Location())
}

// DaysUntilDue counts whole days from today to NextDueDate. Time-of-day is
// ignored on both sides.
func (c *Calculator) DaysUntilDue(statementDay, dueDay int) int {
	return utils.DaysBetween(c.clock.Now(), c.NextDueDate(statementDay, dueDay))
}

// IsOverdue reports whether the next due date is already behind today
func (c *Calculator) IsOverdue(statementDay, dueDay int) bool {
	return c.DaysUntilDue(statementDay, dueDay) < 0
}

// IsStatementOverdue reports whether today is past the due date of the
// statement generated on statementDate.
func (c *Calculator) IsStatementOverdue(statementDate time.Time, dueDay int) bool {
	return utils.DaysBetween(StatementDueDate(statementDate, dueDay), c.clock.Now()) > 0
}

// StatementDueDate returns the first clamped due day strictly after the
// statement date.
func StatementDueDate(statementDate time.Time, dueDay int) time.Time {
	due := utils.ClampedDate(statementDate.Year(), statementDate.Month(), dueDay, statementDate.Location())
	if utils.DaysBetween(statementDate, due) > 0 {
		return due
	}
	return utils.ClampedDate(statementDate.Year(), statementDate.Month()+1, dueDay, statementDate.Location())
}

func cycleContaining(now time.Time, statementDay int) Cycle {
	y, m, d := now.Date()
	loc := now.Location()

	var start, end time.Time
	thisStatement := utils.ClampedDate(y, m, statementDay, loc)
	if d <= thisStatement.Day() {
		end = thisStatement
		start = utils.ClampedDate(y, m-1, statementDay, loc).AddDate(0, 0, 1)
	} else {
		start = thisStatement.AddDate(0, 0, 1)
		end = utils.ClampedDate(y, m+1, statementDay, loc)
	}

	return Cycle{
		Start:         utils.TruncateToDay(start),
		End:           utils.EndOfDay(end),
		StatementDate: end,
	}
}
