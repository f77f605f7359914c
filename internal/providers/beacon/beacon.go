// Package beacon implements the currencybeacon.com rate provider. It covers
// the full instrument set including crypto, and supports timeseries fetches
// that return many days in one request.
//
// Docs: https://currencybeacon.com/api-documentation
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/internal/infra"
	"github.com/seenimoa/fxvault/pkg/money"
)

const (
	// Source identifies this provider in stored snapshots.
	Source = "currencybeacon.com"

	defaultBaseURL = "https://api.currencybeacon.com/v1"

	// Historical responses carry a bare date; the snapshot timestamp is
	// pinned to the end of that day.
	endOfDay = "T23:59:59Z"
)

// Client calls the currencybeacon.com API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *infra.RateLimiter
}

var (
	_ forex.RateSource           = (*Client)(nil)
	_ forex.HistoricalRateSource = (*Client)(nil)
	_ forex.TimeseriesRateSource = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimiter makes every call wait for a limiter token first.
func WithRateLimiter(rl *infra.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    infra.DefaultHTTPClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rateTable map[string]decimal.Decimal

type snapshotResponse struct {
	Meta struct {
		Code int `json:"code"`
	} `json:"meta"`
	Response struct {
		Date  string    `json:"date"`
		Base  string    `json:"base"`
		Rates rateTable `json:"rates"`
	} `json:"response"`
}

type timeseriesResponse struct {
	Meta struct {
		Code int `json:"code"`
	} `json:"meta"`
	Response map[string]rateTable `json:"response"`
}

func symbolsParam() string {
	codes := make([]string, 0, len(money.Currencies()))
	for _, c := range money.Currencies() {
		codes = append(codes, c.Code())
	}
	return strings.Join(codes, ",")
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &forex.ProviderError{Source: Source, Err: err}
		}
	}

	params.Set("api_key", c.apiKey)
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	body, err := infra.DoGet(ctx, c.http, u, nil)
	if err != nil {
		return &forex.ProviderError{Source: Source, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &forex.ProviderError{Source: Source, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}

func ratesData(raw rateTable) forex.RatesData {
	var data forex.RatesData
	for _, cur := range money.Currencies() {
		if v, ok := raw[cur.Code()]; ok {
			data.SetRate(cur, v)
		}
	}
	return data
}

// Rates fetches the current rate table for the given base currency.
func (c *Client) Rates(ctx context.Context, base money.Currency) (forex.RatesResponse[forex.Rates], error) {
	params := url.Values{}
	params.Set("base", base.Code())
	params.Set("symbols", symbolsParam())

	var resp snapshotResponse
	if err := c.get(ctx, "/latest", params, &resp); err != nil {
		return forex.RatesResponse[forex.Rates]{}, err
	}

	asOf, err := time.Parse(time.RFC3339, resp.Response.Date)
	if err != nil {
		return forex.RatesResponse[forex.Rates]{}, &forex.ProviderError{
			Source: Source, Err: fmt.Errorf("parse latest date %q: %w", resp.Response.Date, err)}
	}
	parsedBase, err := money.ParseCurrency(resp.Response.Base)
	if err != nil {
		return forex.RatesResponse[forex.Rates]{}, &forex.ProviderError{
			Source: Source, Err: fmt.Errorf("parse base %q: %w", resp.Response.Base, err)}
	}

	return forex.NewRatesResponse(Source, forex.Rates{
		LatestUpdate: asOf.UTC(),
		Base:         parsedBase,
		Rates:        ratesData(resp.Response.Rates),
	}), nil
}

// HistoricalRates fetches the end-of-day rate table for one date.
func (c *Client) HistoricalRates(ctx context.Context, date time.Time, base money.Currency) (forex.RatesResponse[forex.HistoricalRates], error) {
	params := url.Values{}
	params.Set("base", base.Code())
	params.Set("date", date.UTC().Format("2006-01-02"))
	params.Set("symbols", symbolsParam())

	var resp snapshotResponse
	if err := c.get(ctx, "/historical", params, &resp); err != nil {
		return forex.RatesResponse[forex.HistoricalRates]{}, err
	}
	return c.historicalFromTable(resp.Response.Date, resp.Response.Base, resp.Response.Rates)
}

// TimeseriesRates fetches end-of-day tables for every day in [start, end]
// with a single request, ascending by date.
func (c *Client) TimeseriesRates(ctx context.Context, start, end time.Time, base money.Currency) ([]forex.RatesResponse[forex.HistoricalRates], error) {
	params := url.Values{}
	params.Set("base", base.Code())
	params.Set("start_date", start.UTC().Format("2006-01-02"))
	params.Set("end_date", end.UTC().Format("2006-01-02"))
	params.Set("symbols", symbolsParam())

	var resp timeseriesResponse
	if err := c.get(ctx, "/timeseries", params, &resp); err != nil {
		return nil, err
	}

	days := make([]string, 0, len(resp.Response))
	for day := range resp.Response {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]forex.RatesResponse[forex.HistoricalRates], 0, len(days))
	for _, day := range days {
		snap, err := c.historicalFromTable(day, base.Code(), resp.Response[day])
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (c *Client) historicalFromTable(day, base string, table rateTable) (forex.RatesResponse[forex.HistoricalRates], error) {
	date, err := time.Parse(time.RFC3339, day+endOfDay)
	if err != nil {
		return forex.RatesResponse[forex.HistoricalRates]{}, &forex.ProviderError{
			Source: Source, Err: fmt.Errorf("parse historical date %q: %w", day, err)}
	}
	parsedBase, err := money.ParseCurrency(base)
	if err != nil {
		return forex.RatesResponse[forex.HistoricalRates]{}, &forex.ProviderError{
			Source: Source, Err: fmt.Errorf("parse base %q: %w", base, err)}
	}

	return forex.NewRatesResponse(Source, forex.HistoricalRates{
		Date:  date,
		Base:  parsedBase,
		Rates: ratesData(table),
	}), nil
}
