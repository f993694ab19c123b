package core

import "fmt"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// MonthOverview is the presentation form of Statistics: categories in display
// order, a grand total and the repeating expenses that were considered.
type MonthOverview struct {
	Month      Month
	Total      Money
	ByCategory []CategoryAmount
	Repeaters  []Expense
}

// Overview orders the statistics by the given category list.
func (s Statistics) Overview(categories []Category) (MonthOverview, error) {
	total, err := s.Total()
	if err != nil {
		return MonthOverview{}, fmt.Errorf("total for %s: %w", s.Month, err)
	}
	o := MonthOverview{
		Month:     s.Month,
		Total:     Money{Cents: total},
		Repeaters: s.Repeaters,
	}
	for _, c := range categories {
		o.ByCategory = append(o.ByCategory, CategoryAmount{
			Category: c,
			Amount:   Money{Cents: s.Totals[c.ID]},
		})
	}
	return o, nil
}
