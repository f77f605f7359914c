package forex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/fxvault/pkg/money"
)

// memStorage is an in-memory Storage used by the service tests.
type memStorage struct {
	latest     []RatesResponse[Rates]
	historical map[string]RatesResponse[HistoricalRates]
	patched    []money.Money
}

func newMemStorage() *memStorage {
	return &memStorage{historical: make(map[string]RatesResponse[HistoricalRates])}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (m *memStorage) InsertLatest(_ context.Context, _ time.Time, resp RatesResponse[Rates]) error {
	m.latest = append(m.latest, resp)
	return nil
}

func (m *memStorage) GetLatest(_ context.Context) (RatesResponse[Rates], error) {
	if len(m.latest) == 0 {
		return RatesResponse[Rates]{}, &StorageError{Op: "get latest", Err: errors.New("no snapshots")}
	}
	return m.latest[len(m.latest)-1], nil
}

func (m *memStorage) InsertHistorical(_ context.Context, date time.Time, resp RatesResponse[HistoricalRates]) error {
	m.historical[dayKey(date)] = resp
	return nil
}

func (m *memStorage) InsertHistoricalBatch(ctx context.Context, responses []RatesResponse[HistoricalRates]) error {
	for _, resp := range responses {
		if err := m.InsertHistorical(ctx, resp.Data.Date, resp); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStorage) UpdateHistoricalRatesData(_ context.Context, date time.Time, patches []money.Money) (RatesResponse[HistoricalRates], error) {
	resp, ok := m.historical[dayKey(date)]
	if !ok {
		return RatesResponse[HistoricalRates]{}, &StorageError{Op: "update historical", Err: errors.New("not found")}
	}
	for _, p := range patches {
		resp.Data.Rates.SetRate(p.Currency(), p.Amount())
	}
	m.historical[dayKey(date)] = resp
	m.patched = append(m.patched, patches...)
	return resp, nil
}

func (m *memStorage) GetHistorical(_ context.Context, date time.Time) (RatesResponse[HistoricalRates], error) {
	resp, ok := m.historical[dayKey(date)]
	if !ok {
		return RatesResponse[HistoricalRates]{}, &StorageError{Op: "get historical", Err: errors.New("not found")}
	}
	return resp, nil
}

func (m *memStorage) GetHistoricalRange(_ context.Context, start, end time.Time) ([]RatesResponse[HistoricalRates], error) {
	var out []RatesResponse[HistoricalRates]
	for d := start.UTC(); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		if resp, ok := m.historical[dayKey(d)]; ok {
			out = append(out, resp)
		}
	}
	return out, nil
}

func (m *memStorage) GetLatestList(_ context.Context, _, _ int, _ Order) (RatesList[RatesResponse[Rates]], error) {
	return RatesList[RatesResponse[Rates]]{RatesList: m.latest}, nil
}

func (m *memStorage) GetHistoricalList(_ context.Context, _, _ int, _ Order) (RatesList[RatesResponse[HistoricalRates]], error) {
	var out []RatesResponse[HistoricalRates]
	for _, resp := range m.historical {
		out = append(out, resp)
	}
	return RatesList[RatesResponse[HistoricalRates]]{RatesList: out}, nil
}

func (m *memStorage) ClearLatest(_ context.Context) error {
	if len(m.latest) > 1 {
		m.latest = m.latest[len(m.latest)-1:]
	}
	return nil
}

type fakeSource struct {
	rates      RatesResponse[Rates]
	historical RatesResponse[HistoricalRates]
	series     []RatesResponse[HistoricalRates]
	err        error
}

func (f *fakeSource) Rates(_ context.Context, _ money.Currency) (RatesResponse[Rates], error) {
	return f.rates, f.err
}

func (f *fakeSource) HistoricalRates(_ context.Context, _ time.Time, _ money.Currency) (RatesResponse[HistoricalRates], error) {
	return f.historical, f.err
}

func (f *fakeSource) TimeseriesRates(_ context.Context, _, _ time.Time, _ money.Currency) ([]RatesResponse[HistoricalRates], error) {
	return f.series, f.err
}

func storedLatest(t *testing.T) RatesResponse[Rates] {
	t.Helper()
	return NewRatesResponse("open_exchange_rates", Rates{
		LatestUpdate: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Base:         money.USD,
		Rates:        testRates(t),
	})
}

func TestGetRatesLatestWithBaseProjection(t *testing.T) {
	st := newMemStorage()
	if err := st.InsertLatest(context.Background(), time.Now(), storedLatest(t)); err != nil {
		t.Fatal(err)
	}

	got, err := GetRates(context.Background(), st, money.EUR, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data.Base != money.EUR {
		t.Fatalf("base = %s, want EUR", got.Data.Base.Code())
	}
	if !got.Data.Rates.Rate(money.EUR).Equal(decimal.NewFromInt(1)) {
		t.Errorf("eur rate against itself = %s, want 1", got.Data.Rates.Rate(money.EUR))
	}

	// 1 EUR in USD is 1/0.92.
	want := decimal.NewFromInt(1).Div(decimal.RequireFromString("0.92"))
	if diff := got.Data.Rates.Rate(money.USD).Sub(want).Abs(); diff.GreaterThan(decimal.RequireFromString("0.0000001")) {
		t.Errorf("usd rate = %s, want %s", got.Data.Rates.Rate(money.USD), want)
	}
}

func TestGetRatesSameDayRedirectsToLatest(t *testing.T) {
	st := newMemStorage()
	if err := st.InsertLatest(context.Background(), time.Now(), storedLatest(t)); err != nil {
		t.Fatal(err)
	}

	today := time.Now().UTC()
	got, err := GetRates(context.Background(), st, money.USD, &today)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "open_exchange_rates" {
		t.Errorf("source = %q, want latest snapshot", got.Source)
	}
}

func TestGetRatesHistorical(t *testing.T) {
	st := newMemStorage()
	date := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	hist := NewRatesResponse("currencybeacon", HistoricalRates{
		Date:  date,
		Base:  money.USD,
		Rates: testRates(t),
	})
	if err := st.InsertHistorical(context.Background(), date, hist); err != nil {
		t.Fatal(err)
	}

	got, err := GetRates(context.Background(), st, money.USD, &date)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Data.LatestUpdate.Equal(date) {
		t.Errorf("latest_update = %s, want %s", got.Data.LatestUpdate, date)
	}
	if !got.Data.Rates.Rate(money.IDR).Equal(decimal.RequireFromString("16234.5")) {
		t.Errorf("idr rate = %s", got.Data.Rates.Rate(money.IDR))
	}
}

func TestGetRatesRefusesErrorSnapshot(t *testing.T) {
	st := newMemStorage()
	errSnap := NewErrRates(time.Now().UTC(), errTest)
	if err := st.InsertLatest(context.Background(), time.Now(), errSnap); err != nil {
		t.Fatal(err)
	}

	if _, err := GetRates(context.Background(), st, money.USD, nil); err == nil {
		t.Fatal("want error when latest snapshot is an error record")
	}
}

func TestConvertLatest(t *testing.T) {
	st := newMemStorage()
	if err := st.InsertLatest(context.Background(), time.Now(), storedLatest(t)); err != nil {
		t.Fatal(err)
	}

	from := money.New(money.EUR, decimal.NewFromInt(92))
	got, err := ConvertLatest(context.Background(), st, from, money.USD)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != "USD 100" {
		t.Errorf("code = %q, want %q", got.Code, "USD 100")
	}
	if got.Symbol != "$100" {
		t.Errorf("symbol = %q, want %q", got.Symbol, "$100")
	}
}

func TestConvertLatestMissingRate(t *testing.T) {
	st := newMemStorage()
	if err := st.InsertLatest(context.Background(), time.Now(), storedLatest(t)); err != nil {
		t.Fatal(err)
	}

	from := money.New(money.BTC, decimal.NewFromInt(1))
	_, err := ConvertLatest(context.Background(), st, from, money.USD)
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("err = %v, want ErrRateUnavailable", err)
	}
}

func TestBatchConvertLatestSingleSnapshot(t *testing.T) {
	st := newMemStorage()
	if err := st.InsertLatest(context.Background(), time.Now(), storedLatest(t)); err != nil {
		t.Fatal(err)
	}

	froms := []money.Money{
		money.New(money.EUR, decimal.NewFromInt(92)),
		money.New(money.GBP, decimal.NewFromInt(79)),
	}
	got, err := BatchConvertLatest(context.Background(), st, froms, money.USD)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Code != "USD 100" || got[1].Code != "USD 100" {
		t.Errorf("codes = %q, %q, want both USD 100", got[0].Code, got[1].Code)
	}
}

func TestPollRatesStoresSuccess(t *testing.T) {
	st := newMemStorage()
	src := &fakeSource{rates: storedLatest(t)}

	got, err := PollRates(context.Background(), src, st, money.USD)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error != nil {
		t.Fatalf("error = %v, want nil", *got.Error)
	}
	if len(st.latest) != 1 {
		t.Fatalf("stored %d snapshots, want 1", len(st.latest))
	}
}

func TestPollRatesStoresErrorSnapshot(t *testing.T) {
	st := newMemStorage()
	src := &fakeSource{err: errTest}

	got, err := PollRates(context.Background(), src, st, money.USD)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error == nil || *got.Error != errTest.Error() {
		t.Fatalf("error = %v, want %q", got.Error, errTest.Error())
	}
	if len(st.latest) != 1 {
		t.Fatal("provider failure must still leave a stored record")
	}
}

func TestPollHistoricalRatesStoresErrorSnapshot(t *testing.T) {
	st := newMemStorage()
	src := &fakeSource{err: errTest}
	date := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	got, err := PollHistoricalRates(context.Background(), src, st, date, money.USD)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error == nil {
		t.Fatal("want error snapshot")
	}
	stored, err := st.GetHistorical(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Data.Date.Equal(date) {
		t.Errorf("stored date = %s, want %s", stored.Data.Date, date)
	}
}

func TestImportTimeseriesStoresBatch(t *testing.T) {
	st := newMemStorage()
	start := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC)

	src := &fakeSource{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		src.series = append(src.series, NewRatesResponse("currencybeacon", HistoricalRates{
			Date:  d,
			Base:  money.USD,
			Rates: testRates(t),
		}))
	}

	got, err := ImportTimeseries(context.Background(), src, st, start, end, money.USD)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("imported %d days, want 2", len(got))
	}

	// Every returned day is queryable from storage afterwards.
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		stored, err := st.GetHistorical(context.Background(), d)
		if err != nil {
			t.Fatalf("day %s not stored: %v", d.Format("2006-01-02"), err)
		}
		if !stored.Data.Date.Equal(d) {
			t.Errorf("stored date = %s, want %s", stored.Data.Date, d)
		}
	}
}

func TestImportTimeseriesRejectsInvertedRange(t *testing.T) {
	st := newMemStorage()
	src := &fakeSource{}

	_, err := ImportTimeseries(context.Background(), src, st,
		time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), money.USD)
	if !IsInputError(err) {
		t.Fatalf("err = %v, want input error", err)
	}
	if len(st.historical) != 0 {
		t.Error("nothing may be stored for a rejected range")
	}
}

func TestImportTimeseriesProviderFailure(t *testing.T) {
	st := newMemStorage()
	src := &fakeSource{err: errTest}

	_, err := ImportTimeseries(context.Background(), src, st,
		time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC), money.USD)
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want wrapped provider error", err)
	}
	if len(st.historical) != 0 {
		t.Error("a failed fetch must not store partial data")
	}
}

func TestUpdateHistoricalRatesDataPatchesNamedCurrencies(t *testing.T) {
	st := newMemStorage()
	date := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	stale := NewRatesResponse("currencybeacon", HistoricalRates{
		Date:  date,
		Base:  money.USD,
		Rates: testRates(t),
	})
	if err := st.InsertHistorical(context.Background(), date, stale); err != nil {
		t.Fatal(err)
	}

	fresh := testRates(t)
	fresh.SetRate(money.XAU, decimal.RequireFromString("0.00049"))
	src := &fakeSource{historical: NewRatesResponse("currencybeacon", HistoricalRates{
		Date:  date,
		Base:  money.USD,
		Rates: fresh,
	})}

	got, err := UpdateHistoricalRatesData(context.Background(), src, st, date, []money.Currency{money.XAU})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Data.Rates.Rate(money.XAU).Equal(decimal.RequireFromString("0.00049")) {
		t.Errorf("xau after patch = %s", got.Data.Rates.Rate(money.XAU))
	}
	// Untouched entries keep their prior value.
	if !got.Data.Rates.Rate(money.EUR).Equal(decimal.RequireFromString("0.92")) {
		t.Errorf("eur after patch = %s, want unchanged", got.Data.Rates.Rate(money.EUR))
	}
	if len(st.patched) != 1 {
		t.Errorf("patched %d currencies, want 1", len(st.patched))
	}
}
