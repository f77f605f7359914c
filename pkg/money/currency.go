// Package money provides the closed set of currencies tracked by fxvault and
// the Money value type built on top of them.
//
// Currencies cover the fiat, precious-metal and crypto instruments the rate
// providers publish. The set is fixed: adding an instrument means adding a
// Currency constant and its row in the currency table, plus the matching rate
// field in the forex package.
package money

import "fmt"

// Currency identifies one supported instrument. The declaration order is the
// canonical ordering used for comparisons and iteration.
type Currency int

const (
	// fiat — north america
	USD Currency = iota
	CAD

	// europe
	EUR
	GBP
	CHF
	RUB

	// east asia
	CNY
	JPY
	KRW
	HKD

	// south-east asia
	IDR
	MYR
	SGD
	THB

	// middle east
	SAR
	AED
	KWD

	// south asia
	INR

	// apac
	AUD
	NZD

	// precious metals, quoted per troy ounce
	XAU
	XAG
	XPT

	// crypto
	BTC
	ETH
	SOL
	XRP
	ADA

	numCurrencies
)

// Grouping is the thousands/fraction separator convention a currency's
// amounts are written in.
type Grouping int

const (
	// CommaThousands writes amounts like "1,234,567.89".
	CommaThousands Grouping = iota
	// DotThousands writes amounts like "1.234.567,89" (IDR-style).
	DotThousands
)

// currencyInfo is one row of the currency table.
type currencyInfo struct {
	code     string
	symbol   string
	grouping Grouping
}

// currencyTable drives code/symbol lookups and amount formatting. One row per
// Currency constant, in declaration order.
var currencyTable = [numCurrencies]currencyInfo{
	USD: {"USD", "$", CommaThousands},
	CAD: {"CAD", "CA$", CommaThousands},
	EUR: {"EUR", "€", CommaThousands},
	GBP: {"GBP", "£", CommaThousands},
	CHF: {"CHF", "₣", CommaThousands},
	RUB: {"RUB", "₽", CommaThousands},
	CNY: {"CNY", "¥", CommaThousands},
	JPY: {"JPY", "¥", CommaThousands},
	KRW: {"KRW", "₩", CommaThousands},
	HKD: {"HKD", "HK$", CommaThousands},
	IDR: {"IDR", "Rp", DotThousands},
	MYR: {"MYR", "RM", CommaThousands},
	SGD: {"SGD", "S$", CommaThousands},
	THB: {"THB", "฿", CommaThousands},
	SAR: {"SAR", "ر.س", CommaThousands},
	AED: {"AED", "د.إ", CommaThousands},
	KWD: {"KWD", "د.ك", CommaThousands},
	INR: {"INR", "₹", CommaThousands},
	AUD: {"AUD", "A$", CommaThousands},
	NZD: {"NZD", "NZ$", CommaThousands},
	XAU: {"XAU", "Au", CommaThousands},
	XAG: {"XAG", "Ag", CommaThousands},
	XPT: {"XPT", "Pt", CommaThousands},
	BTC: {"BTC", "₿", CommaThousands},
	ETH: {"ETH", "Ξ", CommaThousands},
	SOL: {"SOL", "◎", CommaThousands},
	XRP: {"XRP", "✕", CommaThousands},
	ADA: {"ADA", "₳", CommaThousands},
}

// codeIndex maps canonical codes back to Currency values. Built once at init.
var codeIndex = func() map[string]Currency {
	idx := make(map[string]Currency, numCurrencies)
	for c, info := range currencyTable {
		idx[info.code] = Currency(c)
	}
	return idx
}()

// Currencies returns all supported currencies in canonical order.
func Currencies() []Currency {
	all := make([]Currency, numCurrencies)
	for i := range all {
		all[i] = Currency(i)
	}
	return all
}

// ParseCurrency resolves a canonical currency code (case-sensitive, e.g.
// "USD" or "BTC") against the supported set. Unknown codes return a
// *ParseError.
func ParseCurrency(code string) (Currency, error) {
	c, ok := codeIndex[code]
	if !ok {
		return 0, &ParseError{Msg: fmt.Sprintf("currency %q not supported", code)}
	}
	return c, nil
}

// Valid reports whether c is one of the declared currency constants.
func (c Currency) Valid() bool {
	return c >= 0 && c < numCurrencies
}

// Code returns the canonical 3-letter code.
func (c Currency) Code() string {
	if !c.Valid() {
		return fmt.Sprintf("Currency(%d)", int(c))
	}
	return currencyTable[c].code
}

// Symbol returns the display symbol, e.g. "$" for USD or "₿" for BTC.
func (c Currency) Symbol() string {
	if !c.Valid() {
		return fmt.Sprintf("Currency(%d)", int(c))
	}
	return currencyTable[c].symbol
}

// Grouping returns the separator convention amounts in this currency use.
func (c Currency) Grouping() Grouping {
	if !c.Valid() {
		return CommaThousands
	}
	return currencyTable[c].grouping
}

// String implements fmt.Stringer and returns the canonical code.
func (c Currency) String() string { return c.Code() }

// MarshalText encodes the currency as its canonical code, which keeps JSON
// documents readable and matches the persisted snapshot format.
func (c Currency) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("money: cannot marshal invalid currency %d", int(c))
	}
	return []byte(currencyTable[c].code), nil
}

// UnmarshalText decodes a canonical currency code.
func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
