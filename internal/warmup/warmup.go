// Package warmup prefetches a watchlist through the market data cache on a cron schedule so the
// first forecast of the day does not wait on the provider
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aouyang1/go-stockforecaster/internal/metrics"
	"github.com/aouyang1/go-stockforecaster/marketdata"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrEmptyWatchlist = errors.New("empty watchlist")
	ErrStarted        = errors.New("warmup already started")
)

// Source is a cached market data source whose entries can be dropped before refreshing
type Source interface {
	marketdata.Source
	Invalidate(ctx context.Context, ticker string) error
}

// Summary reports the result of one pass over the watchlist
type Summary struct {
	Fetched int
	Failed  int
}

// Warmer refreshes the cached default window of every watchlist ticker
type Warmer struct {
	src       Source
	watchlist []string
	timeout   time.Duration
	metrics   *metrics.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

// New returns a Warmer over the watchlist. Metrics may be nil.
func New(src Source, watchlist []string, m *metrics.Metrics) *Warmer {
	w := make([]string, len(watchlist))
	copy(w, watchlist)
	return &Warmer{
		src:       src,
		watchlist: w,
		timeout:   DefaultTimeout,
		metrics:   m,
	}
}

// Start schedules the refresh with a six field cron expression that includes seconds. Runs that
// are still in progress when the next one is due are skipped.
func (w *Warmer) Start(ctx context.Context, schedule string) error {
	if len(w.watchlist) == 0 {
		return ErrEmptyWatchlist
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return ErrStarted
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, func() { w.RunNow(ctx) }); err != nil {
		return fmt.Errorf("register warmup schedule %q, %w", schedule, err)
	}
	c.Start()
	w.cron = c

	slog.Info("warmup scheduled", "schedule", schedule, "watchlist", w.watchlist)
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish
func (w *Warmer) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	slog.Info("warmup stopped")
}

// RunNow refreshes every ticker of the watchlist in order. A failed ticker does not stop the pass.
func (w *Warmer) RunNow(ctx context.Context) Summary {
	var sum Summary
	for _, ticker := range w.watchlist {
		if ctx.Err() != nil {
			break
		}
		if err := w.refresh(ctx, ticker); err != nil {
			sum.Failed++
			w.observe(err)
			slog.Warn("warmup fetch failed", "ticker", ticker, "error", err)
			continue
		}
		sum.Fetched++
		w.observe(nil)
	}
	slog.Info("warmup finished", "fetched", sum.Fetched, "failed", sum.Failed)
	return sum
}

func (w *Warmer) refresh(ctx context.Context, ticker string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.src.Invalidate(ctx, ticker); err != nil {
		slog.Warn("warmup invalidate failed", "ticker", ticker, "error", err)
	}
	_, err := w.src.Fetch(ctx, ticker, time.Time{}, time.Time{})
	return err
}

func (w *Warmer) observe(err error) {
	if w.metrics == nil {
		return
	}
	w.metrics.WarmupRuns.WithLabelValues(metrics.Outcome(err)).Inc()
}
