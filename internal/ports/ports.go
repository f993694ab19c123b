package ports

import (
	"context"
	"time"

	"prorata/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		AddExpense(ctx context.Context, e core.Expense) (id int64, err error)
		DeleteExpense(ctx context.Context, id int64) error
	}

	ExpenseReader interface {
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		// ListExpenses returns every expense ordered by issue date.
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	// MonthQuerier returns the expenses relevant to a month, already split by
	// proration class. Implementations may filter in the database or in memory.
	MonthQuerier interface {
		MonthPartition(ctx context.Context, m core.Month) (core.Partition, error)
	}

	CategoryStore interface {
		Categories(ctx context.Context) ([]core.Category, error)
		AddCategory(ctx context.Context, c core.Category) (core.Category, error)
		RenameCategory(ctx context.Context, id int64, name, slug string) error
		DeleteCategory(ctx context.Context, id int64) error
	}

	CurrencyReader interface {
		Currencies(ctx context.Context) ([]core.Currency, error)
		CurrencyByIdentifier(ctx context.Context, identifier string) (core.Currency, error)
	}

	// RateConverter converts amounts in minor units to the base currency.
	RateConverter interface {
		ToBase(ctx context.Context, cents int64, currency string, at time.Time) (int64, error)
	}

	// Store is everything the services need from a record store.
	Store interface {
		ExpenseWriter
		ExpenseReader
		MonthQuerier
		CategoryStore
		CurrencyReader
		Close() error
	}
)
