package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"prorata/internal/amqp"
	"prorata/internal/core"
	applog "prorata/internal/log"
)

// RecomputeProcessorConfig holds configuration for the recompute processor
type RecomputeProcessorConfig struct {
	// FlushInterval is how often pending months are recomputed (default: 2s)
	FlushInterval time.Duration

	// Horizon is how many months past the first occurrence a repeating
	// expense is considered to affect (default: 12)
	Horizon int

	// MaxRetries is the maximum attempts per month before it is dropped (default: 3)
	MaxRetries int
}

// DefaultRecomputeProcessorConfig returns sensible defaults
func DefaultRecomputeProcessorConfig() RecomputeProcessorConfig {
	return RecomputeProcessorConfig{
		FlushInterval: 2 * time.Second,
		Horizon:       12,
		MaxRetries:    3,
	}
}

// MonthHandler receives each recomputed month.
type MonthHandler func(ctx context.Context, o core.MonthOverview) error

// RecomputeProcessor collects the months touched by expense events and
// recomputes them in batches, so a burst of events on the same months costs
// one computation per month.
type RecomputeProcessor struct {
	stats   *StatisticsService
	onMonth MonthHandler
	config  RecomputeProcessorConfig

	pendingMu sync.Mutex
	pending   map[core.Month]int // month -> failed attempts

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeProcessor creates a new recompute processor
func NewRecomputeProcessor(stats *StatisticsService, onMonth MonthHandler, config RecomputeProcessorConfig) *RecomputeProcessor {
	return &RecomputeProcessor{
		stats:   stats,
		onMonth: onMonth,
		config:  config,
		pending: make(map[core.Month]int),
	}
}

// HandleEvent marks the months affected by ev for recomputation. It matches
// the handler signature of amqp.Client.ConsumeExpenseEvents.
func (p *RecomputeProcessor) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	months := core.AffectedMonths(ev.Span(), p.config.Horizon)

	p.pendingMu.Lock()
	for _, m := range months {
		if _, ok := p.pending[m]; !ok {
			p.pending[m] = 0
		}
	}
	p.pendingMu.Unlock()

	slog.DebugContext(ctx, "Queued months for recompute",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldEventID, ev.EventID,
		applog.FieldEventType, ev.Type,
		applog.FieldExpenseID, ev.ExpenseID,
		"months", len(months))
	return nil
}

// Pending returns the months waiting for recomputation in calendar order.
func (p *RecomputeProcessor) Pending() []core.Month {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	out := make([]core.Month, 0, len(p.pending))
	for m := range p.pending {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal() < out[j].Ordinal() })
	return out
}

// Start begins the processing loop. Returns an error if already running.
func (p *RecomputeProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("recompute processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Recompute processor started",
		applog.FieldComponent, applog.ComponentWorker,
		"flush_interval", p.config.FlushInterval,
		"horizon", p.config.Horizon)

	return nil
}

// Stop flushes what is pending and waits for the loop to exit.
func (p *RecomputeProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Recompute processor stopped gracefully", applog.FieldComponent, applog.ComponentWorker)
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recompute processor stop timed out", applog.FieldComponent, applog.ComponentWorker)
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RecomputeProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RecomputeProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.Flush(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush recomputes every pending month and returns how many succeeded.
// Failed months stay pending until MaxRetries is reached.
func (p *RecomputeProcessor) Flush(ctx context.Context) int {
	p.pendingMu.Lock()
	batch := p.pending
	p.pending = make(map[core.Month]int)
	p.pendingMu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	months := make([]core.Month, 0, len(batch))
	for m := range batch {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Ordinal() < months[j].Ordinal() })

	done := 0
	for _, m := range months {
		if ctx.Err() != nil {
			p.requeue(m, batch[m])
			continue
		}
		if err := p.recompute(ctx, m); err != nil {
			p.handleFailure(ctx, m, batch[m], err)
			continue
		}
		done++
	}

	slog.InfoContext(ctx, "Recomputed months",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, applog.OpRecompute,
		"count", done, "batch", len(months))
	return done
}

func (p *RecomputeProcessor) recompute(ctx context.Context, m core.Month) error {
	o, err := p.stats.Month(ctx, m)
	if err != nil {
		return err
	}
	if p.onMonth != nil {
		return p.onMonth(ctx, o)
	}
	return nil
}

func (p *RecomputeProcessor) handleFailure(ctx context.Context, m core.Month, attempts int, err error) {
	fields := applog.NewFields().
		WithComponent(applog.ComponentWorker).
		WithOperation(applog.OpRecompute).
		WithMonth(m.Year, int(m.Month)).
		WithError(err)
	slog.WarnContext(ctx, "Recompute failed", append(fields.ToSlice(), "attempt", attempts+1)...)

	if attempts+1 >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Month dropped after max retries", append(fields.ToSlice(), "attempts", attempts+1)...)
		return
	}
	p.requeue(m, attempts+1)
}

func (p *RecomputeProcessor) requeue(m core.Month, attempts int) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if prev, ok := p.pending[m]; !ok || prev < attempts {
		p.pending[m] = attempts
	}
}
