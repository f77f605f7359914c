package forex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/fxvault/pkg/money"
)

// GetRates returns the stored snapshot for the given base currency: the
// latest one when date is nil, otherwise the record for date's calendar day.
// Snapshots are stored against BaseCurrency; any other base is answered by
// re-projecting the stored table through cross-rate conversion. A request for
// today's date is answered from the latest snapshot.
func GetRates(ctx context.Context, storage Storage, base money.Currency, date *time.Time) (RatesResponse[Rates], error) {
	if date == nil || sameCalendarDay(*date, time.Now().UTC()) {
		return getLatestRates(ctx, storage, base)
	}
	return getHistoricalRates(ctx, storage, base, *date)
}

func getLatestRates(ctx context.Context, storage Storage, base money.Currency) (RatesResponse[Rates], error) {
	latest, err := storage.GetLatest(ctx)
	if err != nil {
		return RatesResponse[Rates]{}, fmt.Errorf("get latest rates: %w", err)
	}
	if latest.Error != nil {
		return RatesResponse[Rates]{}, fmt.Errorf("latest snapshot recorded a poll failure: %s", *latest.Error)
	}
	return projectBase(latest, base)
}

func getHistoricalRates(ctx context.Context, storage Storage, base money.Currency, date time.Time) (RatesResponse[Rates], error) {
	historical, err := storage.GetHistorical(ctx, date)
	if err != nil {
		return RatesResponse[Rates]{}, fmt.Errorf("get historical rates: %w", err)
	}
	if historical.Error != nil {
		return RatesResponse[Rates]{}, fmt.Errorf("historical snapshot for %s recorded a poll failure: %s",
			date.Format("2006-01-02"), *historical.Error)
	}

	asRates := RatesResponse[Rates]{
		ID:       historical.ID,
		Source:   historical.Source,
		PollDate: historical.PollDate,
		Data: Rates{
			LatestUpdate: historical.Data.Date,
			Base:         historical.Data.Base,
			Rates:        historical.Data.Rates,
		},
	}
	return projectBase(asRates, base)
}

// projectBase rewrites a BaseCurrency-denominated snapshot against another
// base: each entry becomes the value of 1 unit of base in that currency, and
// the base's own entry becomes exactly 1.
func projectBase(resp RatesResponse[Rates], base money.Currency) (RatesResponse[Rates], error) {
	if base == resp.Data.Base {
		return resp, nil
	}

	one := decimal.NewFromInt(1)
	var projected RatesData
	for _, target := range money.Currencies() {
		if target == base {
			projected.SetRate(target, one)
			continue
		}
		converted, err := Convert(resp.Data.Rates, money.New(base, one), target)
		if err != nil {
			return RatesResponse[Rates]{}, fmt.Errorf("project rates to base %s: %w", base.Code(), err)
		}
		projected.SetRate(target, converted.Amount())
	}

	resp.Data = Rates{
		LatestUpdate: resp.Data.LatestUpdate,
		Base:         base,
		Rates:        projected,
	}
	return resp, nil
}

// ConvertLatest converts from into to using the most recent stored snapshot.
func ConvertLatest(ctx context.Context, storage Storage, from money.Money, to money.Currency) (ConversionResponse, error) {
	latest, err := storage.GetLatest(ctx)
	if err != nil {
		return ConversionResponse{}, fmt.Errorf("convert: %w", err)
	}
	if latest.Error != nil {
		return ConversionResponse{}, fmt.Errorf("latest rates unavailable: %s", *latest.Error)
	}
	return buildConversion(latest.Data.Rates, latest.Data.LatestUpdate, from, to)
}

// ConvertHistorical converts from into to using the snapshot stored for
// date's calendar day.
func ConvertHistorical(ctx context.Context, storage Storage, from money.Money, to money.Currency, date time.Time) (ConversionResponse, error) {
	historical, err := storage.GetHistorical(ctx, date)
	if err != nil {
		return ConversionResponse{}, fmt.Errorf("convert historical: %w", err)
	}
	if historical.Error != nil {
		return ConversionResponse{}, fmt.Errorf("historical rates for %s unavailable: %s",
			date.Format("2006-01-02"), *historical.Error)
	}
	return buildConversion(historical.Data.Rates, historical.Data.Date, from, to)
}

// BatchConvertLatest converts every element against one latest snapshot,
// fetched once for the whole batch.
func BatchConvertLatest(ctx context.Context, storage Storage, froms []money.Money, to money.Currency) ([]ConversionResponse, error) {
	latest, err := storage.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch convert: %w", err)
	}
	if latest.Error != nil {
		return nil, fmt.Errorf("latest rates unavailable: %s", *latest.Error)
	}

	results := make([]ConversionResponse, 0, len(froms))
	for _, from := range froms {
		conv, err := buildConversion(latest.Data.Rates, latest.Data.LatestUpdate, from, to)
		if err != nil {
			return nil, err
		}
		results = append(results, conv)
	}
	return results, nil
}

func buildConversion(rates RatesData, asOf time.Time, from money.Money, to money.Currency) (ConversionResponse, error) {
	converted, err := Convert(rates, from, to)
	if err != nil {
		return ConversionResponse{}, err
	}
	if converted.IsZero() && !from.IsZero() {
		return ConversionResponse{}, fmt.Errorf("convert %s to %s: %w", from.Currency().Code(), to.Code(), ErrRateUnavailable)
	}
	return ConversionResponse{
		Date:   asOf,
		From:   from,
		To:     converted,
		Code:   converted.Format(false),
		Symbol: converted.Format(true),
	}, nil
}

// PollRates fetches the latest rates from source and persists the outcome.
// A provider failure is persisted as an error snapshot rather than dropped,
// so every poll cycle leaves an auditable record.
func PollRates(ctx context.Context, source RateSource, storage Storage, base money.Currency) (RatesResponse[Rates], error) {
	resp, err := source.Rates(ctx, base)
	if err != nil {
		slog.Warn("latest rates poll failed, recording error snapshot", "base", base.Code(), "error", err)
		resp = NewErrRates(time.Now().UTC(), err)
	}

	if err := storage.InsertLatest(ctx, resp.Data.LatestUpdate, resp); err != nil {
		return RatesResponse[Rates]{}, fmt.Errorf("poll rates: %w", err)
	}
	return resp, nil
}

// PollHistoricalRates fetches end-of-day rates for one date and persists the
// outcome, recording provider failures as error snapshots keyed by the
// requested date so gaps stay detectable and retryable.
func PollHistoricalRates(ctx context.Context, source HistoricalRateSource, storage Storage, date time.Time, base money.Currency) (RatesResponse[HistoricalRates], error) {
	resp, err := source.HistoricalRates(ctx, date, base)
	if err != nil {
		slog.Warn("historical rates poll failed, recording error snapshot",
			"date", date.Format("2006-01-02"), "base", base.Code(), "error", err)
		errResp := NewErrHistoricalRates(date, err)
		if storeErr := storage.InsertHistorical(ctx, date, errResp); storeErr != nil {
			return RatesResponse[HistoricalRates]{}, fmt.Errorf("poll historical rates: %w", storeErr)
		}
		return errResp, nil
	}

	if err := storage.InsertHistorical(ctx, resp.Data.Date, resp); err != nil {
		return RatesResponse[HistoricalRates]{}, fmt.Errorf("poll historical rates: %w", err)
	}
	return resp, nil
}

// ImportTimeseries fetches end-of-day rates for every day in [start, end]
// through a single provider timeseries call and persists them as one batch.
// Days the provider omits (weekends, holidays) are simply absent from the
// result; existing records for returned days are replaced.
func ImportTimeseries(ctx context.Context, source TimeseriesRateSource, storage Storage, start, end time.Time, base money.Currency) ([]RatesResponse[HistoricalRates], error) {
	if end.Before(start) {
		return nil, NewInputError(fmt.Sprintf("timeseries range inverted: %s after %s",
			start.Format("2006-01-02"), end.Format("2006-01-02")))
	}

	snapshots, err := source.TimeseriesRates(ctx, start, end, base)
	if err != nil {
		return nil, fmt.Errorf("import timeseries: %w", err)
	}
	if err := storage.InsertHistoricalBatch(ctx, snapshots); err != nil {
		return nil, fmt.Errorf("import timeseries: %w", err)
	}

	slog.Info("imported timeseries",
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"days", len(snapshots))
	return snapshots, nil
}

// UpdateHistoricalRatesData re-fetches one date from source and patches only
// the named currencies into the stored record. Used to backfill individual
// instruments (typically metals or crypto) without replacing the whole day.
func UpdateHistoricalRatesData(ctx context.Context, source HistoricalRateSource, storage Storage, date time.Time, currencies []money.Currency) (RatesResponse[HistoricalRates], error) {
	if _, err := storage.GetHistorical(ctx, date); err != nil {
		return RatesResponse[HistoricalRates]{}, fmt.Errorf("update historical rates: %w", err)
	}

	fresh, err := source.HistoricalRates(ctx, date, BaseCurrency)
	if err != nil {
		return RatesResponse[HistoricalRates]{}, fmt.Errorf("update historical rates: %w", err)
	}

	patches := make([]money.Money, 0, len(currencies))
	for _, c := range currencies {
		patches = append(patches, money.New(c, fresh.Data.Rates.Rate(c)))
	}

	return storage.UpdateHistoricalRatesData(ctx, date, patches)
}

func sameCalendarDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
