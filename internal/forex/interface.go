package forex

import (
	"context"
	"time"

	"github.com/seenimoa/fxvault/pkg/money"
)

// RateSource is the capability implemented by external rate-provider
// adapters: fetch the current rates for a base currency. Adapters own HTTP
// transport, auth and response mapping; the core never talks to a provider
// directly.
type RateSource interface {
	// Rates returns the provider's latest rates expressed against base.
	Rates(ctx context.Context, base money.Currency) (RatesResponse[Rates], error)
}

// HistoricalRateSource fetches end-of-day rates for one calendar date.
type HistoricalRateSource interface {
	HistoricalRates(ctx context.Context, date time.Time, base money.Currency) (RatesResponse[HistoricalRates], error)
}

// TimeseriesRateSource fetches end-of-day rates for an inclusive date range
// in one provider call. Not every provider supports this.
type TimeseriesRateSource interface {
	TimeseriesRates(ctx context.Context, start, end time.Time, base money.Currency) ([]RatesResponse[HistoricalRates], error)
}

// QuotaSource exposes the provider's remaining request quota, used by the
// backfill coordinator to cap a run.
type QuotaSource interface {
	QuotaRemaining(ctx context.Context) (int, error)
}

// Storage is the persistence contract for rate snapshots. Implementations
// own the on-disk representation; callers always receive owned copies.
type Storage interface {
	// InsertLatest persists a new latest snapshot keyed by its poll time.
	InsertLatest(ctx context.Context, asOf time.Time, resp RatesResponse[Rates]) error

	// GetLatest returns the most recently inserted latest snapshot, or a
	// StorageError when none exist.
	GetLatest(ctx context.Context) (RatesResponse[Rates], error)

	// InsertHistorical persists a snapshot pinned to date's calendar day.
	// At most one record exists per day; a second insert for the same day
	// replaces the first.
	InsertHistorical(ctx context.Context, date time.Time, resp RatesResponse[HistoricalRates]) error

	// InsertHistoricalBatch persists a timeseries fetch in one pass.
	InsertHistoricalBatch(ctx context.Context, responses []RatesResponse[HistoricalRates]) error

	// UpdateHistoricalRatesData loads the record for date, overwrites only
	// the rate fields named by patches (each Money's currency selects the
	// field, its amount is the new rate), re-persists and returns the
	// updated snapshot.
	UpdateHistoricalRatesData(ctx context.Context, date time.Time, patches []money.Money) (RatesResponse[HistoricalRates], error)

	// GetHistorical returns the record for date's calendar day, or a
	// StorageError when absent.
	GetHistorical(ctx context.Context, date time.Time) (RatesResponse[HistoricalRates], error)

	// GetHistoricalRange returns all records with start <= date <= end,
	// ascending by date.
	GetHistoricalRange(ctx context.Context, start, end time.Time) ([]RatesResponse[HistoricalRates], error)

	// GetLatestList returns one page of latest snapshots sorted by poll
	// time. Pages are 1-based; page 0 behaves like page 1.
	GetLatestList(ctx context.Context, page, size int, order Order) (RatesList[RatesResponse[Rates]], error)

	// GetHistoricalList returns one page of historical snapshots sorted by
	// date.
	GetHistoricalList(ctx context.Context, page, size int, order Order) (RatesList[RatesResponse[HistoricalRates]], error)

	// ClearLatest removes all latest snapshots except the newest one. The
	// daily poller runs this to keep the latest directory bounded.
	ClearLatest(ctx context.Context) error
}
