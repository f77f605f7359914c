package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseError is a client-facing input error: a malformed currency code,
// malformed money text, or an amount whose grouping breaks the currency's
// separator convention. It is never retried and its message is surfaced
// verbatim.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return e.Msg }

const moneyFormatHint = `money must be written as "<CODE> <AMOUNT>", e.g. "USD 1,000.50" or "IDR 45.000.000"`

// The two amount grammars. An amount belongs to exactly one convention unless
// it carries no separators at all, in which case both accept it.
var (
	commaAmountRe = regexp.MustCompile(`^\d{1,3}(,?\d{3})*(\.\d{2})?$`)
	dotAmountRe   = regexp.MustCompile(`^\d{1,3}(\.?\d{3})*(,\d{2})?$`)
)

// Money pairs a Currency with an exact decimal amount. The zero value is
// "USD 0". Money is a value type: operations return new values and never
// mutate the receiver.
type Money struct {
	currency Currency
	amount   decimal.Decimal
}

// New builds a Money from a currency and an exact amount.
func New(c Currency, amount decimal.Decimal) Money {
	return Money{currency: c, amount: amount}
}

// Parse reads the "<CODE> <AMOUNT>" grammar. The amount may use the
// currency's own grouping convention or the opposite one, as long as the
// reading is unambiguous: an amount whose only interpretation turns the
// currency's thousands separator into a decimal separator (e.g. "USD 100,00")
// is rejected rather than silently re-read.
func Parse(text string) (Money, error) {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return Money{}, &ParseError{Msg: moneyFormatHint}
	}

	currency, err := ParseCurrency(parts[0])
	if err != nil {
		return Money{}, err
	}

	normalized, err := normalizeAmount(currency, parts[1])
	if err != nil {
		return Money{}, err
	}

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return Money{}, &ParseError{Msg: fmt.Sprintf("invalid amount %q: %v", parts[1], err)}
	}

	return Money{currency: currency, amount: amount}, nil
}

// normalizeAmount validates the literal against the grouping grammars and
// strips separators down to a plain decimal string.
func normalizeAmount(c Currency, raw string) (string, error) {
	matchesComma := commaAmountRe.MatchString(raw)
	matchesDot := dotAmountRe.MatchString(raw)

	var detected Grouping
	switch {
	case matchesComma && matchesDot:
		// No separators present; either reading yields the same number.
		detected = c.Grouping()
	case matchesComma:
		detected = CommaThousands
	case matchesDot:
		detected = DotThousands
	default:
		return "", &ParseError{Msg: fmt.Sprintf("amount %q has illegal grouping: %s", raw, moneyFormatHint)}
	}

	// Decimal-as-thousands collision: reading the amount under the opposite
	// convention must not reinterpret the currency's thousands separator as a
	// fraction mark.
	if detected != c.Grouping() {
		collision := (detected == DotThousands && strings.Contains(raw, ",")) ||
			(detected == CommaThousands && strings.Contains(raw, "."))
		if collision {
			return "", &ParseError{Msg: fmt.Sprintf("amount %q mixes separator conventions for %s", raw, c.Code())}
		}
	}

	switch detected {
	case DotThousands:
		intPart, fracPart, hasFrac := strings.Cut(raw, ",")
		normalized := strings.ReplaceAll(intPart, ".", "")
		if hasFrac {
			normalized += "." + fracPart
		}
		return normalized, nil
	default:
		return strings.ReplaceAll(raw, ",", ""), nil
	}
}

// Currency returns the money's currency.
func (m Money) Currency() Currency { return m.currency }

// Amount returns the exact decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// Equal reports structural equality: same currency and the same exact
// decimal. Amounts in different currencies are never equal.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Cmp orders Money lexicographically by (currency, amount).
func (m Money) Cmp(other Money) int {
	if m.currency != other.currency {
		if m.currency < other.currency {
			return -1
		}
		return 1
	}
	return m.amount.Cmp(other.amount)
}

// Format renders the amount using the currency's grouping convention.
// Fractional amounts are rounded to 2 minor-unit digits; whole amounts render
// without a fraction part. With useSymbol the result is "<SYMBOL><AMOUNT>",
// otherwise "<CODE> <AMOUNT>".
func (m Money) Format(useSymbol bool) string {
	rendered := groupAmount(m.amount, m.currency.Grouping())
	if useSymbol {
		return m.currency.Symbol() + rendered
	}
	return m.currency.Code() + " " + rendered
}

// String implements fmt.Stringer using the code form of Format.
func (m Money) String() string { return m.Format(false) }

// groupAmount renders a decimal with thousands grouping per the convention.
func groupAmount(d decimal.Decimal, grouping Grouping) string {
	thousandsSep, decimalSep := ",", "."
	if grouping == DotThousands {
		thousandsSep, decimalSep = ".", ","
	}

	var plain string
	if d.IsInteger() {
		plain = d.StringFixed(0)
	} else {
		plain = d.StringFixed(2)
	}

	negative := strings.HasPrefix(plain, "-")
	plain = strings.TrimPrefix(plain, "-")
	intPart, fracPart, hasFrac := strings.Cut(plain, ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(thousandsSep)
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteString(decimalSep)
		b.WriteString(fracPart)
	}
	return b.String()
}
