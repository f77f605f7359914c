package forex

import (
	"fmt"

	"github.com/seenimoa/fxvault/pkg/money"
)

// Convert performs cross-rate conversion of from into the target currency
// using a single rate table: amount / rate(from) * rate(to), both rates
// expressed against the table's base currency. Converting to the same
// currency returns from unchanged, with no rounding.
//
// A zero or missing rate for either currency yields a zero result rather
// than an error. Callers must treat an exactly-zero result from a non-zero
// input as "rate unavailable" (see ErrRateUnavailable); Convert itself cannot
// distinguish that from a legitimately zero input.
func Convert(rates RatesData, from money.Money, to money.Currency) (money.Money, error) {
	if !to.Valid() {
		return money.Money{}, NewInputError(fmt.Sprintf("target currency %d not supported", int(to)))
	}
	if from.Currency() == to {
		return from, nil
	}

	fromRate := rates.Rate(from.Currency())
	if fromRate.IsZero() {
		return money.New(to, fromRate), nil
	}

	baseAmount := from.Amount().Div(fromRate)
	targetAmount := baseAmount.Mul(rates.Rate(to))

	return money.New(to, targetAmount), nil
}

// BatchConvert converts every element of froms into to against the same rate
// table. The whole batch fails on the first element whose rate is
// unavailable: a zero result from a non-zero input.
func BatchConvert(rates RatesData, froms []money.Money, to money.Currency) ([]money.Money, error) {
	results := make([]money.Money, 0, len(froms))
	for _, from := range froms {
		converted, err := Convert(rates, from, to)
		if err != nil {
			return nil, err
		}
		if converted.IsZero() && !from.IsZero() {
			return nil, fmt.Errorf("batch convert %s to %s: %w", from.Currency().Code(), to.Code(), ErrRateUnavailable)
		}
		results = append(results, converted)
	}
	return results, nil
}
