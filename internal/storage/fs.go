// Package storage persists rate snapshots as JSON files on the local
// filesystem. Latest snapshots accumulate under latest/, one file per poll,
// and end-of-day snapshots live under historical/<year>/, one file per
// calendar day.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/pkg/money"
)

const (
	latestDir     = "latest"
	historicalDir = "historical"

	latestStampFormat     = "2006-01-02T15:04:05Z"
	historicalStampFormat = "2006-01-02Z"

	fileMode = 0o600
	dirMode  = 0o700
)

// FileStore implements forex.Storage on top of a directory tree.
type FileStore struct {
	root string
}

var _ forex.Storage = (*FileStore)(nil)

// NewFileStore creates the latest/ and historical/ subdirectories under root
// if they do not exist yet.
func NewFileStore(root string) (*FileStore, error) {
	for _, dir := range []string{filepath.Join(root, latestDir), filepath.Join(root, historicalDir)} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, &forex.StorageError{Op: "init", Err: err}
		}
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory the store was opened on.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) latestPath(asOf time.Time) string {
	name := fmt.Sprintf("latest-%s.json", asOf.UTC().Format(latestStampFormat))
	return filepath.Join(s.root, latestDir, name)
}

func (s *FileStore) historicalPath(date time.Time) string {
	date = date.UTC()
	name := fmt.Sprintf("historical-%s.json", date.Format(historicalStampFormat))
	return filepath.Join(s.root, historicalDir, fmt.Sprintf("%04d", date.Year()), name)
}

// writeSnapshot writes pretty-printed JSON and tightens the permissions to
// owner read/write only.
func writeSnapshot(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, fileMode); err != nil {
		return err
	}
	return os.Chmod(path, fileMode)
}

func readSnapshot[T any](path string) (forex.RatesResponse[T], error) {
	var resp forex.RatesResponse[T]
	raw, err := os.ReadFile(path)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return resp, nil
}

func (s *FileStore) InsertLatest(_ context.Context, asOf time.Time, resp forex.RatesResponse[forex.Rates]) error {
	if err := writeSnapshot(s.latestPath(asOf), resp); err != nil {
		return &forex.StorageError{Op: "insert latest", Err: err}
	}
	return nil
}

func (s *FileStore) GetLatest(_ context.Context) (forex.RatesResponse[forex.Rates], error) {
	names, err := s.latestNames()
	if err != nil {
		return forex.RatesResponse[forex.Rates]{}, &forex.StorageError{Op: "get latest", Err: err}
	}
	if len(names) == 0 {
		return forex.RatesResponse[forex.Rates]{}, &forex.StorageError{Op: "get latest", Err: os.ErrNotExist}
	}

	// Timestamps zero-pad every component, so the lexicographically greatest
	// filename is the newest snapshot.
	newest := names[len(names)-1]
	resp, err := readSnapshot[forex.Rates](filepath.Join(s.root, latestDir, newest))
	if err != nil {
		return forex.RatesResponse[forex.Rates]{}, &forex.StorageError{Op: "get latest", Err: err}
	}
	return resp, nil
}

// latestNames returns the latest snapshot filenames sorted ascending.
func (s *FileStore) latestNames() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, latestDir))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) InsertHistorical(_ context.Context, date time.Time, resp forex.RatesResponse[forex.HistoricalRates]) error {
	if err := writeSnapshot(s.historicalPath(date), resp); err != nil {
		return &forex.StorageError{Op: "insert historical", Err: err}
	}
	return nil
}

func (s *FileStore) InsertHistoricalBatch(ctx context.Context, responses []forex.RatesResponse[forex.HistoricalRates]) error {
	for _, resp := range responses {
		if err := ctx.Err(); err != nil {
			return &forex.StorageError{Op: "insert historical batch", Err: err}
		}
		if err := s.InsertHistorical(ctx, resp.Data.Date, resp); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) UpdateHistoricalRatesData(ctx context.Context, date time.Time, patches []money.Money) (forex.RatesResponse[forex.HistoricalRates], error) {
	resp, err := s.GetHistorical(ctx, date)
	if err != nil {
		return forex.RatesResponse[forex.HistoricalRates]{}, err
	}
	for _, p := range patches {
		resp.Data.Rates.SetRate(p.Currency(), p.Amount())
	}
	if err := writeSnapshot(s.historicalPath(date), resp); err != nil {
		return forex.RatesResponse[forex.HistoricalRates]{}, &forex.StorageError{Op: "update historical", Err: err}
	}
	return resp, nil
}

func (s *FileStore) GetHistorical(_ context.Context, date time.Time) (forex.RatesResponse[forex.HistoricalRates], error) {
	resp, err := readSnapshot[forex.HistoricalRates](s.historicalPath(date))
	if err != nil {
		return forex.RatesResponse[forex.HistoricalRates]{}, &forex.StorageError{Op: "get historical", Err: err}
	}
	return resp, nil
}

// GetHistoricalRange returns the stored records between start and end
// inclusive, ascending by date. Days without a record are skipped.
func (s *FileStore) GetHistoricalRange(_ context.Context, start, end time.Time) ([]forex.RatesResponse[forex.HistoricalRates], error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil, &forex.StorageError{Op: "get historical range",
			Err: fmt.Errorf("end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))}
	}

	dates, err := s.historicalDates()
	if err != nil {
		return nil, &forex.StorageError{Op: "get historical range", Err: err}
	}

	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var out []forex.RatesResponse[forex.HistoricalRates]
	for _, d := range dates {
		if d.Before(startDay) || d.After(endDay) {
			continue
		}
		resp, err := readSnapshot[forex.HistoricalRates](s.historicalPath(d))
		if err != nil {
			return nil, &forex.StorageError{Op: "get historical range", Err: err}
		}
		out = append(out, resp)
	}
	return out, nil
}

// historicalDates scans the year directories and returns every stored date
// sorted ascending.
func (s *FileStore) historicalDates() ([]time.Time, error) {
	years, err := os.ReadDir(filepath.Join(s.root, historicalDir))
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, historicalDir, year.Name()))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, "historical-") || !strings.HasSuffix(name, ".json") {
				continue
			}
			stamp := strings.TrimSuffix(strings.TrimPrefix(name, "historical-"), ".json")
			d, err := time.Parse(historicalStampFormat, stamp)
			if err != nil {
				continue
			}
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *FileStore) GetLatestList(_ context.Context, page, size int, order forex.Order) (forex.RatesList[forex.RatesResponse[forex.Rates]], error) {
	var empty forex.RatesList[forex.RatesResponse[forex.Rates]]
	names, err := s.latestNames()
	if err != nil {
		return empty, &forex.StorageError{Op: "get latest list", Err: err}
	}
	if order == forex.OrderDesc {
		reverse(names)
	}

	pageNames, hasPrev, hasNext := paginate(names, page, size)
	items := make([]forex.RatesResponse[forex.Rates], 0, len(pageNames))
	for _, name := range pageNames {
		resp, err := readSnapshot[forex.Rates](filepath.Join(s.root, latestDir, name))
		if err != nil {
			return empty, &forex.StorageError{Op: "get latest list", Err: err}
		}
		items = append(items, resp)
	}
	return forex.RatesList[forex.RatesResponse[forex.Rates]]{HasPrev: hasPrev, RatesList: items, HasNext: hasNext}, nil
}

func (s *FileStore) GetHistoricalList(_ context.Context, page, size int, order forex.Order) (forex.RatesList[forex.RatesResponse[forex.HistoricalRates]], error) {
	var empty forex.RatesList[forex.RatesResponse[forex.HistoricalRates]]
	dates, err := s.historicalDates()
	if err != nil {
		return empty, &forex.StorageError{Op: "get historical list", Err: err}
	}
	if order == forex.OrderDesc {
		reverse(dates)
	}

	pageDates, hasPrev, hasNext := paginate(dates, page, size)
	items := make([]forex.RatesResponse[forex.HistoricalRates], 0, len(pageDates))
	for _, d := range pageDates {
		resp, err := readSnapshot[forex.HistoricalRates](s.historicalPath(d))
		if err != nil {
			return empty, &forex.StorageError{Op: "get historical list", Err: err}
		}
		items = append(items, resp)
	}
	return forex.RatesList[forex.RatesResponse[forex.HistoricalRates]]{HasPrev: hasPrev, RatesList: items, HasNext: hasNext}, nil
}

// ClearLatest removes every latest snapshot except the newest one.
func (s *FileStore) ClearLatest(_ context.Context) error {
	names, err := s.latestNames()
	if err != nil {
		return &forex.StorageError{Op: "clear latest", Err: err}
	}
	if len(names) <= 1 {
		return nil
	}
	for _, name := range names[:len(names)-1] {
		if err := os.Remove(filepath.Join(s.root, latestDir, name)); err != nil {
			return &forex.StorageError{Op: "clear latest", Err: err}
		}
	}
	return nil
}

// paginate slices items for a 1-based page of the given size. Out-of-range
// pages saturate: page values below 1 read as 1 and pages past the end
// return an empty slice with has_prev set.
func paginate[T any](items []T, page, size int) (out []T, hasPrev, hasNext bool) {
	if size <= 0 {
		return nil, false, len(items) > 0
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], start > 0, end < len(items)
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
