package loop

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner executes one full watchlist pass.
type Runner interface {
	RunPass(ctx context.Context) error
}

// Hours reports whether the market is currently open.
type Hours interface {
	IsOpen(ctx context.Context) (bool, error)
}

// Reporter flushes the activity ledger and publishes the daily summary.
type Reporter interface {
	PublishDaily(ctx context.Context) error
}

type Config struct {
	OpenInterval   time.Duration
	ClosedInterval time.Duration
	Backoff        time.Duration
	SummaryHour    int
	SummaryMinute  int
	TZ             *time.Location
}

// Loop drives repeated controller passes. Cadence depends on market state,
// any failure inside an iteration is contained and followed by a backoff,
// and the daily summary fires at most once per calendar day.
type Loop struct {
	runner      Runner
	hours       Hours
	reporter    Reporter
	cfg         Config
	lastSummary string
	now         func() time.Time
}

func New(runner Runner, hours Hours, reporter Reporter, cfg Config) *Loop {
	if cfg.TZ == nil {
		cfg.TZ = time.UTC
	}
	return &Loop{
		runner:   runner,
		hours:    hours,
		reporter: reporter,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run iterates until the context is cancelled. Cancellation is observed
// between passes; the pass in flight finishes its current symbol first.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("trading loop started", "open_interval", l.cfg.OpenInterval, "closed_interval", l.cfg.ClosedInterval)
	for {
		delay := l.iterate(ctx)
		if err := wait(ctx, delay); err != nil {
			slog.Info("trading loop stopped")
			return err
		}
	}
}

// iterate runs one pass and returns how long to sleep before the next one.
// Panics and errors never escape: they are logged and answered with backoff.
func (l *Loop) iterate(ctx context.Context) (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pass panicked", "panic", r)
			delay = l.cfg.Backoff
		}
	}()

	open, err := l.hours.IsOpen(ctx)
	if err != nil {
		slog.Error("market hours check failed", "error", err)
		return l.cfg.Backoff
	}

	if err := l.runner.RunPass(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("pass failed", "error", err)
		}
		return l.cfg.Backoff
	}

	if open {
		return l.cfg.OpenInterval
	}
	l.maybePublishSummary(ctx)
	return l.cfg.ClosedInterval
}

func (l *Loop) maybePublishSummary(ctx context.Context) {
	now := l.now().In(l.cfg.TZ)
	today := now.Format("2006-01-02")
	if l.lastSummary == today {
		return
	}
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), l.cfg.SummaryHour, l.cfg.SummaryMinute, 0, 0, l.cfg.TZ)
	if now.Before(cutoff) {
		return
	}

	if err := l.reporter.PublishDaily(ctx); err != nil {
		slog.Error("daily summary failed", "error", err)
	}
	// Record the date even on failure: at most one attempt per day.
	l.lastSummary = today
}

func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
