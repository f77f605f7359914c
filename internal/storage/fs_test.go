package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/pkg/money"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func latestAt(t *testing.T, at time.Time) forex.RatesResponse[forex.Rates] {
	t.Helper()
	var data forex.RatesData
	data.SetRate(money.USD, decimal.NewFromInt(1))
	data.SetRate(money.EUR, decimal.RequireFromString("0.92"))
	return forex.NewRatesResponse("open_exchange_rates", forex.Rates{
		LatestUpdate: at,
		Base:         money.USD,
		Rates:        data,
	})
}

func historicalAt(t *testing.T, date time.Time) forex.RatesResponse[forex.HistoricalRates] {
	t.Helper()
	var data forex.RatesData
	data.SetRate(money.USD, decimal.NewFromInt(1))
	data.SetRate(money.IDR, decimal.RequireFromString("16234.5"))
	return forex.NewRatesResponse("currencybeacon", forex.HistoricalRates{
		Date:  date,
		Base:  money.USD,
		Rates: data,
	})
}

func TestInsertLatestFileLayoutAndMode(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)

	if err := store.InsertLatest(context.Background(), at, latestAt(t, at)); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(store.Root(), "latest", "latest-2024-03-01T12:30:45Z.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("mode = %o, want 0600", mode)
	}
}

func TestGetLatestReturnsNewest(t *testing.T) {
	store := newTestStore(t)
	old := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)

	if err := store.InsertLatest(context.Background(), old, latestAt(t, old)); err != nil {
		t.Fatal(err)
	}
	want := latestAt(t, newer)
	if err := store.InsertLatest(context.Background(), newer, want); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetLatest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID {
		t.Errorf("got snapshot %s, want newest %s", got.ID, want.ID)
	}
}

func TestGetLatestEmpty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetLatest(context.Background())
	var storageErr *forex.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("err = %v, want StorageError", err)
	}
}

func TestHistoricalRoundTripAndYearLayout(t *testing.T) {
	store := newTestStore(t)
	date := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	want := historicalAt(t, date)

	if err := store.InsertHistorical(context.Background(), date, want); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(store.Root(), "historical", "2024", "historical-2024-02-15Z.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected year-partitioned file: %v", err)
	}

	got, err := store.GetHistorical(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID {
		t.Errorf("id = %s, want %s", got.ID, want.ID)
	}
	if !got.Data.Rates.Rate(money.IDR).Equal(decimal.RequireFromString("16234.5")) {
		t.Errorf("idr = %s", got.Data.Rates.Rate(money.IDR))
	}
}

func TestUpdateHistoricalRatesData(t *testing.T) {
	store := newTestStore(t)
	date := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	if err := store.InsertHistorical(context.Background(), date, historicalAt(t, date)); err != nil {
		t.Fatal(err)
	}

	patch := money.New(money.XAU, decimal.RequireFromString("0.00049"))
	got, err := store.UpdateHistoricalRatesData(context.Background(), date, []money.Money{patch})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Data.Rates.Rate(money.XAU).Equal(patch.Amount()) {
		t.Errorf("xau = %s, want %s", got.Data.Rates.Rate(money.XAU), patch.Amount())
	}

	// The patch must survive a re-read from disk.
	reread, err := store.GetHistorical(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if !reread.Data.Rates.Rate(money.XAU).Equal(patch.Amount()) {
		t.Errorf("persisted xau = %s, want %s", reread.Data.Rates.Rate(money.XAU), patch.Amount())
	}
	if !reread.Data.Rates.Rate(money.IDR).Equal(decimal.RequireFromString("16234.5")) {
		t.Error("unpatched entries must keep their prior value")
	}
}

func TestGetHistoricalRangeInclusiveAndAscending(t *testing.T) {
	store := newTestStore(t)
	dates := []time.Time{
		time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		if err := store.InsertHistorical(context.Background(), d, historicalAt(t, d)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.GetHistoricalRange(context.Background(),
		time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (bounds are inclusive)", len(got))
	}
	if !got[0].Data.Date.Before(got[1].Data.Date) {
		t.Error("range must be ascending by date")
	}
}

func TestGetHistoricalRangeRejectsInvertedBounds(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetHistoricalRange(context.Background(),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("want error for end before start")
	}
}

func TestGetHistoricalListPagination(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		d := base.AddDate(0, 0, i)
		if err := store.InsertHistorical(context.Background(), d, historicalAt(t, d)); err != nil {
			t.Fatal(err)
		}
	}

	// 10 items at page size 8: page 1 holds 8 with more ahead, page 2 holds
	// the remaining 2 with more behind, page 3 is empty.
	page1, err := store.GetHistoricalList(context.Background(), 1, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.RatesList) != 8 || page1.HasPrev || !page1.HasNext {
		t.Errorf("page 1: len=%d has_prev=%v has_next=%v", len(page1.RatesList), page1.HasPrev, page1.HasNext)
	}

	page2, err := store.GetHistoricalList(context.Background(), 2, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.RatesList) != 2 || !page2.HasPrev || page2.HasNext {
		t.Errorf("page 2: len=%d has_prev=%v has_next=%v", len(page2.RatesList), page2.HasPrev, page2.HasNext)
	}

	page3, err := store.GetHistoricalList(context.Background(), 3, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page3.RatesList) != 0 || !page3.HasPrev || page3.HasNext {
		t.Errorf("page 3: len=%d has_prev=%v has_next=%v", len(page3.RatesList), page3.HasPrev, page3.HasNext)
	}

	// Page 0 saturates to page 1.
	page0, err := store.GetHistoricalList(context.Background(), 0, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page0.RatesList) != 8 || page0.HasPrev {
		t.Errorf("page 0: len=%d has_prev=%v", len(page0.RatesList), page0.HasPrev)
	}
}

func TestGetLatestListPagination(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		if err := store.InsertLatest(context.Background(), at, latestAt(t, at)); err != nil {
			t.Fatal(err)
		}
	}

	// The latest path pages the same way: 8 then 2 then empty.
	page1, err := store.GetLatestList(context.Background(), 1, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.RatesList) != 8 || page1.HasPrev || !page1.HasNext {
		t.Errorf("page 1: len=%d has_prev=%v has_next=%v", len(page1.RatesList), page1.HasPrev, page1.HasNext)
	}

	page2, err := store.GetLatestList(context.Background(), 2, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.RatesList) != 2 || !page2.HasPrev || page2.HasNext {
		t.Errorf("page 2: len=%d has_prev=%v has_next=%v", len(page2.RatesList), page2.HasPrev, page2.HasNext)
	}

	page3, err := store.GetLatestList(context.Background(), 3, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page3.RatesList) != 0 || !page3.HasPrev || page3.HasNext {
		t.Errorf("page 3: len=%d has_prev=%v has_next=%v", len(page3.RatesList), page3.HasPrev, page3.HasNext)
	}

	page0, err := store.GetLatestList(context.Background(), 0, 8, forex.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if len(page0.RatesList) != 8 || page0.HasPrev {
		t.Errorf("page 0: len=%d has_prev=%v", len(page0.RatesList), page0.HasPrev)
	}
	if !page0.RatesList[0].Data.LatestUpdate.Equal(page1.RatesList[0].Data.LatestUpdate) {
		t.Error("page 0 must saturate to page 1")
	}
}

func TestGetHistoricalListDescending(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		d := base.AddDate(0, 0, i)
		if err := store.InsertHistorical(context.Background(), d, historicalAt(t, d)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.GetHistoricalList(context.Background(), 1, 3, forex.OrderDesc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.RatesList) != 3 {
		t.Fatalf("len = %d, want 3", len(got.RatesList))
	}
	if !got.RatesList[0].Data.Date.After(got.RatesList[2].Data.Date) {
		t.Error("descending order expected")
	}
}

func TestClearLatestKeepsNewest(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var newest forex.RatesResponse[forex.Rates]
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		newest = latestAt(t, at)
		if err := store.InsertLatest(context.Background(), at, newest); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.ClearLatest(context.Background()); err != nil {
		t.Fatal(err)
	}

	names, err := store.latestNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 {
		t.Fatalf("kept %d files, want 1", len(names))
	}
	got, err := store.GetLatest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != newest.ID {
		t.Errorf("kept snapshot %s, want newest %s", got.ID, newest.ID)
	}
}
