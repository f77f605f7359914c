// Package poller runs the background poll schedule: latest rates on a fixed
// interval, plus a daily job that archives yesterday's end-of-day rates and
// prunes the latest directory.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/internal/metrics"
	"github.com/seenimoa/fxvault/pkg/money"
)

// Poller drives the recurring poll jobs until Stop is called.
type Poller struct {
	latest       forex.RateSource
	historical   forex.HistoricalRateSource
	storage      forex.Storage
	base         money.Currency
	pollInterval time.Duration
	dailyAt      string // "HH:MM" UTC
	log          *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(latest forex.RateSource, historical forex.HistoricalRateSource, storage forex.Storage,
	base money.Currency, pollInterval time.Duration, dailyAt string, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		latest:       latest,
		historical:   historical,
		storage:      storage,
		base:         base,
		pollInterval: pollInterval,
		dailyAt:      dailyAt,
		log:          log,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the poll loops. It returns immediately; use Stop to shut
// down and wait for in-flight polls to finish.
func (p *Poller) Start(ctx context.Context) error {
	if _, err := parseDailyAt(p.dailyAt); err != nil {
		return err
	}

	p.wg.Add(2)
	go p.latestLoop(ctx)
	go p.dailyLoop(ctx)
	p.log.Info("poller started", "interval", p.pollInterval, "daily_at", p.dailyAt)
	return nil
}

// Stop signals both loops to exit and blocks until they have.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Poller) latestLoop(ctx context.Context) {
	defer p.wg.Done()

	p.pollLatest(ctx)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollLatest(ctx)
		}
	}
}

func (p *Poller) pollLatest(ctx context.Context) {
	resp, err := forex.PollRates(ctx, p.latest, p.storage, p.base)
	switch {
	case err != nil:
		metrics.StorageErrorsTotal.Inc()
		p.log.Error("latest poll could not be stored", "error", err)
	case resp.Error != nil:
		metrics.PollsTotal.WithLabelValues(resp.Source, metrics.OutcomeError).Inc()
	default:
		metrics.PollsTotal.WithLabelValues(resp.Source, metrics.OutcomeOK).Inc()
		p.log.Info("latest rates stored", "as_of", resp.Data.LatestUpdate)
	}
}

func (p *Poller) dailyLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		wait := untilNextDaily(time.Now().UTC(), p.dailyAt)
		timer := time.NewTimer(wait)
		select {
		case <-p.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			p.runDaily(ctx)
		}
	}
}

// runDaily archives yesterday's end-of-day rates and prunes the latest
// snapshot directory down to its newest entry.
func (p *Poller) runDaily(ctx context.Context) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)

	resp, err := forex.PollHistoricalRates(ctx, p.historical, p.storage, yesterday, p.base)
	switch {
	case err != nil:
		metrics.StorageErrorsTotal.Inc()
		p.log.Error("daily historical poll could not be stored", "error", err)
	case resp.Error != nil:
		metrics.PollsTotal.WithLabelValues(resp.Source, metrics.OutcomeError).Inc()
	default:
		metrics.PollsTotal.WithLabelValues(resp.Source, metrics.OutcomeOK).Inc()
		p.log.Info("historical rates stored", "date", yesterday.Format("2006-01-02"))
	}

	if err := p.storage.ClearLatest(ctx); err != nil {
		metrics.StorageErrorsTotal.Inc()
		p.log.Error("latest prune failed", "error", err)
	}
}

// parseDailyAt validates an "HH:MM" schedule string and returns the minutes
// past midnight it denotes.
func parseDailyAt(s string) (int, error) {
	at, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid daily schedule %q (want HH:MM): %w", s, err)
	}
	return at.Hour()*60 + at.Minute(), nil
}

// untilNextDaily computes how long to wait from now until the next "HH:MM"
// UTC occurrence.
func untilNextDaily(now time.Time, dailyAt string) time.Duration {
	minutes, err := parseDailyAt(dailyAt)
	if err != nil {
		// Start validates the schedule, so this only guards direct misuse.
		minutes = 0
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(minutes) * time.Minute)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
