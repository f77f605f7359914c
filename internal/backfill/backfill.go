// Package backfill fills gaps in the historical rate archive by fetching
// end-of-day snapshots for a date range, batch by batch, without blowing the
// provider's request quota.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/internal/metrics"
	"github.com/seenimoa/fxvault/pkg/money"
)

// Params bounds a backfill run. QuotaRemaining is the number of provider
// requests the run may spend; RateLimit is the number of concurrent fetches
// per batch; BatchCooldown is the pause between batches.
type Params struct {
	From           time.Time
	To             time.Time
	Base           money.Currency
	QuotaRemaining int
	RateLimit      int
	BatchCooldown  time.Duration
}

// Report summarizes a completed run.
type Report struct {
	Weekdays  int
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
}

// Coordinator drives a backfill run against one historical source.
type Coordinator struct {
	source  forex.HistoricalRateSource
	storage forex.Storage
	log     *slog.Logger
}

func NewCoordinator(source forex.HistoricalRateSource, storage forex.Storage, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{source: source, storage: storage, log: log}
}

// Run fetches end-of-day snapshots for every weekday in [From, To] until the
// quota runs out. Provider failures for individual dates are persisted as
// error snapshots and counted as failed, not fatal; the run only aborts on
// storage failures or context cancellation.
func (c *Coordinator) Run(ctx context.Context, params Params) (Report, error) {
	if params.To.Before(params.From) {
		return Report{}, forex.NewInputError(fmt.Sprintf("backfill range inverted: %s after %s",
			params.From.Format("2006-01-02"), params.To.Format("2006-01-02")))
	}
	if params.QuotaRemaining <= 0 {
		// Not a caller mistake: the provider budget ran out.
		return Report{}, errors.New("backfill: no provider quota remaining")
	}
	if params.RateLimit <= 0 {
		return Report{}, forex.NewInputError("rate limit must be positive")
	}

	weekdays := weekdaysBetween(params.From, params.To)
	total := len(weekdays)
	if params.QuotaRemaining < total {
		total = params.QuotaRemaining
	}

	report := Report{Weekdays: len(weekdays), Skipped: len(weekdays) - total}
	c.log.Info("starting backfill",
		"from", params.From.Format("2006-01-02"),
		"to", params.To.Format("2006-01-02"),
		"weekdays", len(weekdays),
		"requests", total,
		"rate_limit", params.RateLimit)

	for start := 0; start < total; start += params.RateLimit {
		end := start + params.RateLimit
		if end > total {
			end = total
		}
		batch := weekdays[start:end]

		succeeded, failed, err := c.runBatch(ctx, batch, params.Base)
		report.Attempted += len(batch)
		report.Succeeded += succeeded
		report.Failed += failed
		if err != nil {
			return report, err
		}

		c.log.Info("backfill batch done",
			"batch_size", len(batch),
			"succeeded", succeeded,
			"failed", failed,
			"remaining", total-end)

		if end < total && params.BatchCooldown > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(params.BatchCooldown):
			}
		}
	}
	return report, nil
}

// runBatch fetches every date in the batch concurrently. Each fetch records
// its own outcome; only storage failures propagate.
func (c *Coordinator) runBatch(ctx context.Context, dates []time.Time, base money.Currency) (succeeded, failed int, err error) {
	results := make([]bool, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	for i, date := range dates {
		g.Go(func() error {
			resp, err := forex.PollHistoricalRates(gctx, c.source, c.storage, date, base)
			if err != nil {
				metrics.BackfillRequestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
				return err
			}
			if resp.Error != nil {
				metrics.BackfillRequestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
				c.log.Warn("backfill date failed", "date", date.Format("2006-01-02"), "error", *resp.Error)
				return nil
			}
			metrics.BackfillRequestsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
			results[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("backfill batch: %w", err)
	}

	for _, ok := range results {
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed, nil
}

// weekdaysBetween lists the Monday through Friday dates in [from, to]
// inclusive, as UTC midnights in ascending order.
func weekdaysBetween(from, to time.Time) []time.Time {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			days = append(days, d)
		}
	}
	return days
}
