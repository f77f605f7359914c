// Package openexchange implements the openexchangerates.org rate provider.
// The free plan serves hourly USD-based rates, daily historical data, and
// 1,000 requests per month.
//
// Docs: https://docs.openexchangerates.org/
package openexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/fxvault/internal/forex"
	"github.com/seenimoa/fxvault/internal/infra"
	"github.com/seenimoa/fxvault/pkg/money"
)

const (
	// Source identifies this provider in stored snapshots.
	Source = "openexchangerates.org"

	defaultBaseURL = "https://openexchangerates.org/api"
)

// Client calls the openexchangerates.org API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *infra.RateLimiter
}

var (
	_ forex.RateSource           = (*Client)(nil)
	_ forex.HistoricalRateSource = (*Client)(nil)
	_ forex.QuotaSource          = (*Client)(nil)
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

// apiResponse is the shared shape of latest.json and historical responses.
type apiResponse struct {
	Disclaimer string                     `json:"disclaimer"`
	License    string                     `json:"license"`
	Timestamp  int64                      `json:"timestamp"`
	Base       string                     `json:"base"`
	Rates      map[string]decimal.Decimal `json:"rates"`
}

// usageResponse is the relevant slice of usage.json.
type usageResponse struct {
	Data struct {
		Usage struct {
			Requests          int `json:"requests"`
			RequestsQuota     int `json:"requests_quota"`
			RequestsRemaining int `json:"requests_remaining"`
		} `json:"usage"`
	} `json:"data"`
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

	params.Set("app_id", c.apiKey)
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

func ratesData(raw map[string]decimal.Decimal) forex.RatesData {
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

	var resp apiResponse
	if err := c.get(ctx, "/latest.json", params, &resp); err != nil {
		return forex.RatesResponse[forex.Rates]{}, err
	}

	return forex.NewRatesResponse(Source, forex.Rates{
		LatestUpdate: time.Unix(resp.Timestamp, 0).UTC(),
		Base:         base,
		Rates:        ratesData(resp.Rates),
	}), nil
}

// HistoricalRates fetches the end-of-day rate table for one date.
func (c *Client) HistoricalRates(ctx context.Context, date time.Time, base money.Currency) (forex.RatesResponse[forex.HistoricalRates], error) {
	params := url.Values{}
	params.Set("base", base.Code())
	params.Set("symbols", symbolsParam())

	path := fmt.Sprintf("/historical/%s.json", date.UTC().Format("2006-01-02"))
	var resp apiResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return forex.RatesResponse[forex.HistoricalRates]{}, err
	}

	return forex.NewRatesResponse(Source, forex.HistoricalRates{
		Date:  time.Unix(resp.Timestamp, 0).UTC(),
		Base:  base,
		Rates: ratesData(resp.Rates),
	}), nil
}

// QuotaRemaining reports how many API requests the current plan still allows.
func (c *Client) QuotaRemaining(ctx context.Context) (int, error) {
	var resp usageResponse
	if err := c.get(ctx, "/usage.json", url.Values{}, &resp); err != nil {
		return 0, err
	}
	return resp.Data.Usage.RequestsRemaining, nil
}
