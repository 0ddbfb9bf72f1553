package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func currencyUnit(code string) (currency.Unit, error) {
	if len(code) != 3 {
		return currency.Unit{}, fmt.Errorf("payment: invalid currency %q", code)
	}
	return currency.ParseISO(code)
}

// minorScale returns the number of decimal places of the currency's minor
// unit, falling back to 2.
func minorScale(code string) int32 {
	unit, err := currencyUnit(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// ToMinorUnits converts a major-unit amount into the integer minor units the
// gateway charges in (paise for INR), rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	return amount.Shift(minorScale(code)).Round(0).IntPart()
}

// FromMinorUnits converts gateway minor units back into a major-unit amount
func FromMinorUnits(minor int64, code string) decimal.Decimal {
	return decimal.New(minor, -minorScale(code))
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders amount with the currency symbol, e.g. "₹ 1,299.00".
// Unknown currency codes fall back to "CODE 1299.00".
func FormatAmount(amount decimal.Decimal, code string) string {
	unit, err := currencyUnit(code)
	if err != nil {
		return fmt.Sprintf("%s %s", code, amount.StringFixed(2))
	}
	scale := minorScale(code)
	return printer.Sprint(currency.NarrowSymbol(unit.Amount(amount.Round(scale).InexactFloat64())))
}
