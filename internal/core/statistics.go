package core

import "fmt"

// Partition holds the expenses relevant to one target month, split by
// proration class. Record stores may build it with pushed-down queries.
type Partition struct {
	Simple    []Expense
	Bounded   []Expense
	Repeating []Expense
}

// Contribution is the amount a single expense adds to a month.
type Contribution struct {
	Expense Expense
	Amount  int64
}

// Statistics are the per-category totals of one month.
type Statistics struct {
	Month  Month
	Totals map[int64]int64 // category ID -> minor units
	// Repeaters lists the repeating expenses that contributed a non-zero amount.
	Repeaters     []Expense
	Contributions []Contribution
}

// Total sums all category totals. It fails with ErrAmountOverflow instead of
// wrapping.
func (s Statistics) Total() (int64, error) {
	var total int64
	for _, v := range s.Totals {
		var err error
		if total, err = addCents(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// SumCents adds amounts in minor units with the same overflow check as the
// category totals.
func SumCents(values ...int64) (int64, error) {
	var sum int64
	for _, v := range values {
		var err error
		if sum, err = addCents(sum, v); err != nil {
			return 0, err
		}
	}
	return sum, nil
}

// PartitionExpenses applies the partition predicates in memory.
func PartitionExpenses(expenses []Expense, target Month) Partition {
	var p Partition
	start, next := target.Start(), target.Next().Start()
	for _, e := range expenses {
		issued := wallClock(e.Issued)
		switch e.Kind() {
		case KindSimple:
			if !issued.Before(start) && issued.Before(next) {
				p.Simple = append(p.Simple, e)
			}
		case KindBounded:
			if issued.Before(next) && !wallClock(e.End).Before(start) {
				p.Bounded = append(p.Bounded, e)
			}
		case KindRepeating:
			p.Repeating = append(p.Repeating, e)
		}
	}
	return p
}

// Statistics computes category totals for target. Every category starts at
// zero. Invalid records abort the computation with an *ExpenseError.
func (p Prorator) Statistics(part Partition, categories []Category, target Month) (Statistics, error) {
	if _, err := NewMonth(target.Year, int(target.Month)); err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		Month:  target,
		Totals: make(map[int64]int64, len(categories)),
	}
	for _, c := range categories {
		stats.Totals[c.ID] = 0
	}

	add := func(e Expense, amount int64) error {
		current, ok := stats.Totals[e.Category.ID]
		if !ok {
			return &ExpenseError{ID: e.ID, Err: fmt.Errorf("%w: id %d", ErrUnknownCategory, e.Category.ID)}
		}
		sum, err := addCents(current, amount)
		if err != nil {
			return &ExpenseError{ID: e.ID, Err: err}
		}
		stats.Totals[e.Category.ID] = sum
		if amount != 0 {
			stats.Contributions = append(stats.Contributions, Contribution{Expense: e, Amount: amount})
		}
		return nil
	}

	for _, e := range part.Simple {
		if err := e.Validate(); err != nil {
			return Statistics{}, &ExpenseError{ID: e.ID, Err: err}
		}
		if err := add(e, e.InBase.Cents); err != nil {
			return Statistics{}, err
		}
	}

	for _, e := range part.Bounded {
		if err := e.Validate(); err != nil {
			return Statistics{}, &ExpenseError{ID: e.ID, Err: err}
		}
		amount, err := p.FractionalAmountInMonth(e, target)
		if err != nil {
			return Statistics{}, &ExpenseError{ID: e.ID, Err: err}
		}
		if err := add(e, amount); err != nil {
			return Statistics{}, err
		}
	}

	for _, e := range part.Repeating {
		if err := e.Validate(); err != nil {
			return Statistics{}, &ExpenseError{ID: e.ID, Err: err}
		}
		amount, err := p.RepeatingAmountInMonth(e, target)
		if err != nil {
			return Statistics{}, &ExpenseError{ID: e.ID, Err: err}
		}
		if err := add(e, amount); err != nil {
			return Statistics{}, err
		}
		if amount != 0 {
			stats.Repeaters = append(stats.Repeaters, e)
		}
	}

	return stats, nil
}

// AffectedMonths lists the months whose statistics change when e is added or
// removed. Repeating expenses are open ended, so horizon bounds the list.
func AffectedMonths(e Expense, horizon int) []Month {
	first := MonthOf(e.Issued)
	last := first
	switch e.Kind() {
	case KindBounded:
		last = MonthOf(e.End)
	case KindRepeating:
		last = MonthOf(e.LastDay()).Add(max(horizon-1, 0))
	}
	var months []Month
	for o := first.Ordinal(); o <= last.Ordinal(); o++ {
		months = append(months, o.Month())
	}
	return months
}
