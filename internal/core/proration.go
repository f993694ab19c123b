package core

import (
	"fmt"
	"math"
	"time"
)

// MaxExactCents is the largest amount a float64 represents exactly. The
// proration ratio is applied in floating point, so larger amounts are refused.
const MaxExactCents = 1 << 53

const (
	// ExclusiveStartDay does not count the issue day when an interval starts
	// inside the target month and ends after it. Daily shares of such spans do
	// not add up to the full amount.
	ExclusiveStartDay Convention = iota
	// InclusiveStartDay counts the issue day, which conserves the total.
	InclusiveStartDay
)

// Convention selects how the first month of a multi-month interval is counted.
type Convention int

func (c Convention) String() string {
	switch c {
	case ExclusiveStartDay:
		return "exclusive-start"
	case InclusiveStartDay:
		return "inclusive-start"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// ParseConvention parses the names produced by Convention.String.
func ParseConvention(s string) (Convention, error) {
	switch s {
	case "", "exclusive-start":
		return ExclusiveStartDay, nil
	case "inclusive-start":
		return InclusiveStartDay, nil
	default:
		return 0, fmt.Errorf("unknown proration convention %q", s)
	}
}

// Prorator attributes expense amounts to calendar months. The zero value uses
// ExclusiveStartDay. It holds no state and is safe for concurrent use.
type Prorator struct {
	Convention Convention
}

// AmountInMonth returns the share of total that falls into target for a value
// interval running from start (in month startMonth) to end (in month endMonth).
//
// The month ordinals and the dates are passed separately: a repeated
// occurrence advances the ordinals while keeping the original day-of-month
// anchors of start and end.
func (p Prorator) AmountInMonth(startMonth MonthOrdinal, start time.Time, endMonth MonthOrdinal, end time.Time, target Month, total int64) (int64, error) {
	affected := target.Ordinal()
	if affected < startMonth || affected > endMonth {
		return 0, nil
	}

	totalDays := daysBetween(start, end) + 1
	if totalDays < 1 {
		return 0, ErrInvalidExpenseInterval
	}

	monthLength := int64(target.Days())
	var inMonth int64
	switch {
	case startMonth == affected && endMonth == affected:
		inMonth = totalDays
	case startMonth < affected && endMonth == affected:
		inMonth = min(monthLength, int64(end.Day()))
	case startMonth == affected && endMonth > affected:
		inMonth = monthLength - int64(start.Day())
		if p.Convention == InclusiveStartDay {
			inMonth++
		}
		// a shifted occurrence may anchor on a day the month does not have
		inMonth = max(inMonth, 0)
	default:
		inMonth = monthLength
	}

	return prorate(inMonth, totalDays, total)
}

// FractionalAmountInMonth prorates a bounded, non-repeating expense.
func (p Prorator) FractionalAmountInMonth(e Expense, target Month) (int64, error) {
	return p.AmountInMonth(OrdinalOf(e.Issued), e.Issued, OrdinalOf(e.LastDay()), e.LastDay(), target, e.InBase.Cents)
}

// RepeatingAmountInMonth sums the contributions of every occurrence of a
// repeating expense to target. Each occurrence has the shape of the first one
// shifted by a multiple of RepeatMonths.
func (p Prorator) RepeatingAmountInMonth(e Expense, target Month) (int64, error) {
	if e.RepeatMonths < 1 {
		return 0, ErrInvalidRepeatInterval
	}
	step := MonthOrdinal(e.RepeatMonths)
	end := e.LastDay()
	startMonth, endMonth := OrdinalOf(e.Issued), OrdinalOf(end)
	affected := target.Ordinal()

	// occurrences ending before the target contribute nothing
	if endMonth < affected {
		skip := (affected - endMonth + step - 1) / step
		startMonth += skip * step
		endMonth += skip * step
	}

	var amount int64
	for ; startMonth <= affected; startMonth, endMonth = startMonth+step, endMonth+step {
		a, err := p.AmountInMonth(startMonth, e.Issued, endMonth, end, target, e.InBase.Cents)
		if err != nil {
			return 0, err
		}
		if amount, err = addCents(amount, a); err != nil {
			return 0, err
		}
	}
	return amount, nil
}

// AmountForExpense dispatches on the expense kind.
func (p Prorator) AmountForExpense(e Expense, target Month) (int64, error) {
	switch e.Kind() {
	case KindRepeating:
		return p.RepeatingAmountInMonth(e, target)
	case KindBounded:
		return p.FractionalAmountInMonth(e, target)
	default:
		if target.Contains(e.Issued) {
			return e.InBase.Cents, nil
		}
		return 0, nil
	}
}

// prorate returns round(inMonth / totalDays * total), rounding half to even.
func prorate(inMonth, totalDays, total int64) (int64, error) {
	if total > MaxExactCents || total < -MaxExactCents {
		return 0, ErrAmountOverflow
	}
	return int64(math.RoundToEven(float64(inMonth) / float64(totalDays) * float64(total))), nil
}

func addCents(a, b int64) (int64, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, ErrAmountOverflow
	}
	return s, nil
}
