// Package forex holds the rate snapshot model and the conversion, polling and
// patching operations built on top of it. External rate providers and the
// persistent store plug in through the capability interfaces in interface.go;
// everything here is transport-agnostic.
package forex

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seenimoa/fxvault/pkg/money"
)

// BaseCurrency is the reference currency every stored snapshot is normalized
// to. Rates express "1 BaseCurrency = X units of the keyed currency".
const BaseCurrency = money.USD

// RatesData is the fixed-width rate mapping: one decimal field per supported
// currency, keyed in JSON by the lowercase currency code. A zero field means
// the provider did not publish a rate for that instrument.
type RatesData struct {
	USD decimal.Decimal `json:"usd"`
	CAD decimal.Decimal `json:"cad"`
	EUR decimal.Decimal `json:"eur"`
	GBP decimal.Decimal `json:"gbp"`
	CHF decimal.Decimal `json:"chf"`
	RUB decimal.Decimal `json:"rub"`
	CNY decimal.Decimal `json:"cny"`
	JPY decimal.Decimal `json:"jpy"`
	KRW decimal.Decimal `json:"krw"`
	HKD decimal.Decimal `json:"hkd"`
	IDR decimal.Decimal `json:"idr"`
	MYR decimal.Decimal `json:"myr"`
	SGD decimal.Decimal `json:"sgd"`
	THB decimal.Decimal `json:"thb"`
	SAR decimal.Decimal `json:"sar"`
	AED decimal.Decimal `json:"aed"`
	KWD decimal.Decimal `json:"kwd"`
	INR decimal.Decimal `json:"inr"`
	AUD decimal.Decimal `json:"aud"`
	NZD decimal.Decimal `json:"nzd"`
	XAU decimal.Decimal `json:"xau"`
	XAG decimal.Decimal `json:"xag"`
	XPT decimal.Decimal `json:"xpt"`
	BTC decimal.Decimal `json:"btc"`
	ETH decimal.Decimal `json:"eth"`
	SOL decimal.Decimal `json:"sol"`
	XRP decimal.Decimal `json:"xrp"`
	ADA decimal.Decimal `json:"ada"`
}

// Rate returns the rate for c. Unsupported currency values return zero, which
// downstream code treats as "rate unavailable".
func (r *RatesData) Rate(c money.Currency) decimal.Decimal {
	switch c {
	case money.USD:
		return r.USD
	case money.CAD:
		return r.CAD
	case money.EUR:
		return r.EUR
	case money.GBP:
		return r.GBP
	case money.CHF:
		return r.CHF
	case money.RUB:
		return r.RUB
	case money.CNY:
		return r.CNY
	case money.JPY:
		return r.JPY
	case money.KRW:
		return r.KRW
	case money.HKD:
		return r.HKD
	case money.IDR:
		return r.IDR
	case money.MYR:
		return r.MYR
	case money.SGD:
		return r.SGD
	case money.THB:
		return r.THB
	case money.SAR:
		return r.SAR
	case money.AED:
		return r.AED
	case money.KWD:
		return r.KWD
	case money.INR:
		return r.INR
	case money.AUD:
		return r.AUD
	case money.NZD:
		return r.NZD
	case money.XAU:
		return r.XAU
	case money.XAG:
		return r.XAG
	case money.XPT:
		return r.XPT
	case money.BTC:
		return r.BTC
	case money.ETH:
		return r.ETH
	case money.SOL:
		return r.SOL
	case money.XRP:
		return r.XRP
	case money.ADA:
		return r.ADA
	}
	return decimal.Zero
}

// SetRate overwrites the rate field selected by c.
func (r *RatesData) SetRate(c money.Currency, v decimal.Decimal) {
	switch c {
	case money.USD:
		r.USD = v
	case money.CAD:
		r.CAD = v
	case money.EUR:
		r.EUR = v
	case money.GBP:
		r.GBP = v
	case money.CHF:
		r.CHF = v
	case money.RUB:
		r.RUB = v
	case money.CNY:
		r.CNY = v
	case money.JPY:
		r.JPY = v
	case money.KRW:
		r.KRW = v
	case money.HKD:
		r.HKD = v
	case money.IDR:
		r.IDR = v
	case money.MYR:
		r.MYR = v
	case money.SGD:
		r.SGD = v
	case money.THB:
		r.THB = v
	case money.SAR:
		r.SAR = v
	case money.AED:
		r.AED = v
	case money.KWD:
		r.KWD = v
	case money.INR:
		r.INR = v
	case money.AUD:
		r.AUD = v
	case money.NZD:
		r.NZD = v
	case money.XAU:
		r.XAU = v
	case money.XAG:
		r.XAG = v
	case money.XPT:
		r.XPT = v
	case money.BTC:
		r.BTC = v
	case money.ETH:
		r.ETH = v
	case money.SOL:
		r.SOL = v
	case money.XRP:
		r.XRP = v
	case money.ADA:
		r.ADA = v
	}
}

// Rates is the latest snapshot payload: a base currency and the rate mapping
// as of LatestUpdate.
type Rates struct {
	LatestUpdate time.Time      `json:"latest_update"`
	Base         money.Currency `json:"base"`
	Rates        RatesData      `json:"rates"`
}

// HistoricalRates is a snapshot payload pinned to one calendar date.
type HistoricalRates struct {
	Date  time.Time      `json:"date"`
	Base  money.Currency `json:"base"`
	Rates RatesData      `json:"rates"`
}

// RatesResponse wraps a snapshot payload with provenance: a unique id, the
// source that produced it, and the time it was polled. Error is set when the
// poll failed at the data level; the payload fields are then zeroed. Once
// persisted a response is never mutated, only superseded (with the single
// exception of the historical patch operation).
type RatesResponse[T any] struct {
	ID       uuid.UUID `json:"id"`
	Source   string    `json:"source"`
	PollDate time.Time `json:"poll_date"`
	Data     T         `json:"data"`
	Error    *string   `json:"error"`
}

// NewRatesResponse stamps a fresh snapshot with id, source and poll time.
func NewRatesResponse[T any](source string, data T) RatesResponse[T] {
	return RatesResponse[T]{
		ID:       uuid.New(),
		Source:   source,
		PollDate: time.Now().UTC(),
		Data:     data,
	}
}

// NewErrRates builds an error snapshot for a failed latest poll: defaulted
// data, error message preserved for the audit trail.
func NewErrRates(date time.Time, err error) RatesResponse[Rates] {
	msg := err.Error()
	return RatesResponse[Rates]{
		ID:       uuid.New(),
		Source:   "forex",
		PollDate: time.Now().UTC(),
		Data:     Rates{LatestUpdate: date, Base: BaseCurrency},
		Error:    &msg,
	}
}

// NewErrHistoricalRates builds an error snapshot for a failed historical poll
// of the given date.
func NewErrHistoricalRates(date time.Time, err error) RatesResponse[HistoricalRates] {
	msg := err.Error()
	return RatesResponse[HistoricalRates]{
		ID:       uuid.New(),
		Source:   "forex",
		PollDate: time.Now().UTC(),
		Data:     HistoricalRates{Date: date, Base: BaseCurrency},
		Error:    &msg,
	}
}

// RatesList is one page of snapshots produced by the storage layer's
// pagination. It is never persisted.
type RatesList[T any] struct {
	HasPrev   bool `json:"has_prev"`
	RatesList []T  `json:"rates_list"`
	HasNext   bool `json:"has_next"`
}

// Order selects the sort direction for paginated listings.
type Order int

const (
	OrderAsc Order = iota
	OrderDesc
)

// ParseOrder reads "asc"/"desc" (the HTTP query parameter form).
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "asc", "ASC":
		return OrderAsc, nil
	case "desc", "DESC":
		return OrderDesc, nil
	}
	return 0, NewInputError(fmt.Sprintf("order %q must be asc or desc", s))
}

// ConversionResponse is the client-facing result of a conversion: the
// snapshot date used, both ends of the conversion, and the result rendered in
// code and symbol form.
type ConversionResponse struct {
	Date   time.Time   `json:"date"`
	From   money.Money `json:"-"`
	To     money.Money `json:"-"`
	Code   string      `json:"code"`
	Symbol string      `json:"symbol"`
}
