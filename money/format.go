package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var symbols = map[currency.Unit]string{
	currency.USD: "$",
	currency.EUR: "€",
	currency.GBP: "£",
	currency.INR: "₹",
	currency.JPY: "¥",
	currency.CAD: "CA$",
	currency.AUD: "A$",
}

// FormatMinor renders an amount given in the currency's minor unit, e.g.
// FormatMinor(4599, "usd") == "$45.99" and FormatMinor(500, "jpy") == "¥500".
// Unknown codes are rendered with two decimals and the upper-cased code.
func FormatMinor(amount int64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return prefix(code+" ", decimal.New(amount, -2), 2)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return prefix(symbolFor(unit), decimal.New(amount, int32(-scale)), scale)
}

// FormatPrice renders a decimal price the way the order summary does.
func FormatPrice(d decimal.Decimal) string {
	return prefix("$", d, 2)
}

func symbolFor(unit currency.Unit) string {
	if s, ok := symbols[unit]; ok {
		return s
	}
	return unit.String() + " "
}

func prefix(symbol string, d decimal.Decimal, scale int) string {
	if d.IsNegative() {
		return "-" + symbol + d.Abs().StringFixed(int32(scale))
	}
	return symbol + d.StringFixed(int32(scale))
}
