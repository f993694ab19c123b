package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"prorata/internal/core"
	applog "prorata/internal/log"
	"prorata/internal/ports"
)

// StatsStore is the part of the record store statistics read from.
type StatsStore interface {
	ports.MonthQuerier
	Categories(ctx context.Context) ([]core.Category, error)
}

// StatisticsService computes per-category monthly totals.
type StatisticsService struct {
	store       StatsStore
	prorator    core.Prorator
	concurrency int
}

func NewStatisticsService(store StatsStore, convention core.Convention, concurrency int) *StatisticsService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &StatisticsService{
		store:       store,
		prorator:    core.Prorator{Convention: convention},
		concurrency: concurrency,
	}
}

// Statistics computes the raw statistics for m.
func (s *StatisticsService) Statistics(ctx context.Context, m core.Month) (core.Statistics, []core.Category, error) {
	if _, err := core.NewMonth(m.Year, int(m.Month)); err != nil {
		return core.Statistics{}, nil, err
	}

	start := time.Now()
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return core.Statistics{}, nil, fmt.Errorf("list categories: %w", err)
	}
	part, err := s.store.MonthPartition(ctx, m)
	if err != nil {
		return core.Statistics{}, nil, fmt.Errorf("query %s: %w", m, err)
	}

	stats, err := s.prorator.Statistics(part, categories, m)
	if err != nil {
		return core.Statistics{}, nil, fmt.Errorf("statistics for %s: %w", m, err)
	}

	for _, c := range stats.Contributions {
		fields := applog.NewFields().
			WithComponent(applog.ComponentStats).
			WithOperation(applog.OpProrate).
			WithMonth(m.Year, int(m.Month)).
			WithExpense(c.Expense.ID, c.Amount, c.Expense.Kind().String(), c.Expense.Category.Name)
		slog.DebugContext(ctx, "Expense contribution", fields.ToSlice()...)
	}
	total, err := stats.Total()
	if err != nil {
		return core.Statistics{}, nil, fmt.Errorf("statistics for %s: %w", m, err)
	}
	slog.DebugContext(ctx, "Computed month statistics",
		applog.FieldComponent, applog.ComponentStats,
		applog.FieldYear, m.Year,
		applog.FieldMonth, int(m.Month),
		"simple", len(part.Simple),
		"bounded", len(part.Bounded),
		"repeating", len(part.Repeating),
		"total_cents", total,
		applog.FieldDuration, time.Since(start).Milliseconds())

	return stats, categories, nil
}

// Month returns the presentation form of the statistics for m.
func (s *StatisticsService) Month(ctx context.Context, m core.Month) (core.MonthOverview, error) {
	stats, categories, err := s.Statistics(ctx, m)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return stats.Overview(categories)
}

// Year computes all twelve months of year concurrently. The first failure
// cancels the remaining months.
func (s *StatisticsService) Year(ctx context.Context, year int) ([]core.MonthOverview, error) {
	if _, err := core.NewMonth(year, 1); err != nil {
		return nil, err
	}

	out := make([]core.MonthOverview, 12)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range out {
		i := i
		m := core.Month{Year: year, Month: time.Month(i + 1)}
		g.Go(func() error {
			o, err := s.Month(gctx, m)
			if err != nil {
				return err
			}
			out[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
