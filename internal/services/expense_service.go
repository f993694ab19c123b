package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"prorata/internal/amqp"
	"prorata/internal/core"
	applog "prorata/internal/log"
	"prorata/internal/ports"
)

// EventPublisher announces tracked and deleted expenses.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// TrackRequest is the input of ExpenseService.Track.
type TrackRequest struct {
	Price        int64  // minor units of Currency
	Currency     string // ISO code; empty means the base currency
	Category     string // name or slug; empty means the default category
	Issued       time.Time
	End          time.Time
	RepeatMonths int
	Note         string
}

// HistoryFilter narrows ExpenseService.History. Zero values match everything.
type HistoryFilter struct {
	Month    *core.Month
	Category string
	Limit    int
}

// ExpenseService orchestrates expense operations across the record store,
// the rate converter and AMQP
type ExpenseService struct {
	store        ports.Store
	categories   *CategoryService
	rates        ports.RateConverter
	publisher    EventPublisher
	baseCurrency string
	now          func() time.Time
}

func NewExpenseService(store ports.Store, rates ports.RateConverter, publisher EventPublisher, baseCurrency string) *ExpenseService {
	return &ExpenseService{
		store:        store,
		categories:   NewCategoryService(store),
		rates:        rates,
		publisher:    publisher,
		baseCurrency: strings.ToUpper(baseCurrency),
		now:          time.Now,
	}
}

// Track validates, converts and stores a new expense, then publishes an
// expense.tracked event. Publishing failures are logged, not returned.
func (s *ExpenseService) Track(ctx context.Context, req TrackRequest) (core.Expense, error) {
	issued := req.Issued
	if issued.IsZero() {
		issued = s.now()
	}

	code := req.Currency
	if strings.TrimSpace(code) == "" {
		code = s.baseCurrency
	}
	currency, err := s.store.CurrencyByIdentifier(ctx, code)
	if err != nil {
		return core.Expense{}, err
	}

	category, err := s.categories.Resolve(ctx, req.Category)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		Issued:       issued,
		End:          req.End,
		RepeatMonths: req.RepeatMonths,
		Price:        core.Money{Cents: req.Price},
		Note:         strings.TrimSpace(req.Note),
		Currency:     currency,
		Category:     category,
	}
	if err := e.Price.Validate(); err != nil {
		return core.Expense{}, err
	}

	inBase, err := s.toBase(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}
	e.InBase = core.Money{Cents: inBase}

	if err := e.ValidateEntry(); err != nil {
		return core.Expense{}, err
	}

	id, err := s.store.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Tracked expense",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpCreate,
		applog.FieldExpenseID, e.ID,
		applog.FieldKind, e.Kind().String(),
		applog.FieldAmountCents, e.InBase.Cents,
		applog.FieldCurrency, currency.Identifier,
		applog.FieldCategory, category.Name)

	s.publish(ctx, amqp.EventExpenseTracked, e)
	return e, nil
}

func (s *ExpenseService) toBase(ctx context.Context, e core.Expense) (int64, error) {
	if e.Currency.Identifier == s.baseCurrency {
		return e.Price.Cents, nil
	}
	if s.rates == nil {
		return 0, fmt.Errorf("%w: no rate source for %s", core.ErrUnknownCurrency, e.Currency.Identifier)
	}
	cents, err := s.rates.ToBase(ctx, e.Price.Cents, e.Currency.Identifier, e.Issued)
	if err != nil {
		return 0, fmt.Errorf("convert %s to %s: %w", e.Currency.Identifier, s.baseCurrency, err)
	}
	return cents, nil
}

// Delete removes an expense and publishes an expense.deleted event.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Deleted expense",
		applog.FieldComponent, applog.ComponentExpense,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)
	s.publish(ctx, amqp.EventExpenseDeleted, e)
	return nil
}

// Get returns a single expense.
func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// History lists expenses newest first. A month filter matches expenses issued
// in that month; repeating and bounded expenses are listed once, by issue date.
func (s *ExpenseService) History(ctx context.Context, f HistoryFilter) ([]core.Expense, error) {
	all, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var category *core.Category
	if f.Category != "" {
		c, err := s.categories.Resolve(ctx, f.Category)
		if err != nil {
			return nil, err
		}
		category = &c
	}

	out := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if f.Month != nil && !f.Month.Contains(e.Issued) {
			continue
		}
		if category != nil && e.Category.ID != category.ID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Issued.After(out[j].Issued) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *ExpenseService) publish(ctx context.Context, typ amqp.EventType, e core.Expense) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", applog.FieldComponent, applog.ComponentExpense, applog.FieldEventType, typ)
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(typ, e)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldComponent, applog.ComponentExpense,
			applog.FieldEventType, typ,
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
	}
}

// Close closes the record store and the publisher when it holds a connection
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}

	return nil
}
