// Package money provides exact fixed-point arithmetic for monetary
// amounts. The canonical representation is an integer number of minor
// currency units (cents); every operation converts to cents, works in
// integer space, and converts back, so binary floating-point drift
// never accumulates across a computation.
package money

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned by Divide when the divisor is zero.
var ErrDivisionByZero = errors.New("money: division by zero")

// Money is an amount in minor currency units (cents). Negative values
// are debits.
type Money int64

// ToCents converts a decimal amount to integer cents, rounding half
// away from zero at the cent boundary. The conversion goes through a
// decimal representation of the float's shortest form, so ToCents(10.555)
// is 1056 even though 10.555 has no exact binary representation.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// FromCents converts integer cents back to a decimal amount.
func FromCents(cents int64) float64 {
	f, _ := decimal.New(cents, -2).Float64()
	return f
}

// FromFloat converts a decimal amount to Money.
func FromFloat(amount float64) Money {
	return Money(ToCents(amount))
}

// Round normalizes an amount to cent precision.
func Round(amount float64) float64 {
	return FromCents(ToCents(amount))
}

// Add returns a + b with both operands normalized to cents.
func Add(a, b float64) float64 {
	return FromCents(ToCents(a) + ToCents(b))
}

// Subtract returns a - b with both operands normalized to cents.
func Subtract(a, b float64) float64 {
	return FromCents(ToCents(a) - ToCents(b))
}

// Multiply scales an amount by a scalar, rounding the result to the
// nearest cent.
func Multiply(amount, scalar float64) float64 {
	return FromCents(FromFloat(amount).MulFloat(scalar).Cents())
}

// Divide divides an amount by a scalar, rounding the result to the
// nearest cent. A zero divisor returns ErrDivisionByZero.
func Divide(amount, divisor float64) (float64, error) {
	m, err := FromFloat(amount).DivFloat(divisor)
	if err != nil {
		return 0, err
	}
	return FromCents(m.Cents()), nil
}

// Parse converts a plain decimal string such as "-120.50" to Money,
// rounding half away from zero beyond cent precision.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return Money(d.Shift(2).Round(0).IntPart()), nil
}

// Cents returns the underlying minor-unit value.
func (m Money) Cents() int64 { return int64(m) }

// Float64 returns the amount as a decimal number of major units.
func (m Money) Float64() float64 { return FromCents(int64(m)) }

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) Money { return m + other }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return m - other }

// MulFloat scales by an arbitrary factor, rounding half away from zero
// at the cent boundary.
func (m Money) MulFloat(f float64) Money {
	d := decimal.New(int64(m), 0).Mul(decimal.NewFromFloat(f))
	return Money(d.Round(0).IntPart())
}

// DivFloat divides by an arbitrary factor, rounding half away from
// zero at the cent boundary.
func (m Money) DivFloat(f float64) (Money, error) {
	if f == 0 {
		return 0, ErrDivisionByZero
	}
	d := decimal.New(int64(m), 0).Div(decimal.NewFromFloat(f))
	return Money(d.Round(0).IntPart()), nil
}

// String renders the bare decimal value, e.g. "-1234.50".
func (m Money) String() string {
	neg := m < 0
	if neg {
		m = -m
	}
	s := strconv.FormatInt(int64(m)/100, 10) + "." + pad2(int64(m)%100)
	if neg {
		s = "-" + s
	}
	return s
}

// Currency holds formatting rules for a currency code.
type Currency struct {
	Code         string
	Symbol       string
	ThousandsSep string
	DecimalSep   string
}

var currencies = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", ThousandsSep: ",", DecimalSep: "."},
	"EUR": {Code: "EUR", Symbol: "€", ThousandsSep: ".", DecimalSep: ","},
	"GBP": {Code: "GBP", Symbol: "£", ThousandsSep: ",", DecimalSep: "."},
	"CAD": {Code: "CAD", Symbol: "$", ThousandsSep: ",", DecimalSep: "."},
	"AUD": {Code: "AUD", Symbol: "$", ThousandsSep: ",", DecimalSep: "."},
	"CHF": {Code: "CHF", Symbol: "CHF", ThousandsSep: "'", DecimalSep: "."},
	"INR": {Code: "INR", Symbol: "₹", ThousandsSep: ",", DecimalSep: "."},
	"SGD": {Code: "SGD", Symbol: "$", ThousandsSep: ",", DecimalSep: "."},
	"HKD": {Code: "HKD", Symbol: "$", ThousandsSep: ",", DecimalSep: "."},
	"NZD": {Code: "NZD", Symbol: "$", ThousandsSep: ",", DecimalSep: "."},
}

var defaultCurrency = currencies["USD"]

// Format renders an amount with grouping separators and a leading
// currency symbol. Negative amounts carry the sign before the symbol,
// e.g. "-$1,000.00". Unknown codes fall back to USD formatting.
func Format(amount float64, code string) string {
	cur, ok := currencies[strings.ToUpper(code)]
	if !ok {
		cur = defaultCurrency
	}

	m := FromFloat(amount)
	neg := m < 0
	if neg {
		m = -m
	}

	whole := groupDigits(int64(m)/100, cur.ThousandsSep)
	out := cur.Symbol + whole + cur.DecimalSep + pad2(int64(m)%100)
	if neg {
		out = "-" + out
	}
	return out
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

func groupDigits(n int64, sep string) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 || sep == "" {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteString(sep)
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
