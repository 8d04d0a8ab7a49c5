package utils

import (
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

var (
	tenDecimal      = decimal.NewFromInt(10)
	millionDecimal  = decimal.NewFromInt(1_000_000)
	dustThreshold   = decimal.New(1, -5)
	shorthandLimits = []struct {
		limit  decimal.Decimal
		suffix string
	}{
		{decimal.New(1, 12), "T"},
		{decimal.New(1, 9), "B"},
		{decimal.New(1, 6), "M"},
	}
)

// FormatCryptoBalance renders a token amount for diagnostic payloads.
// Small balances keep four decimals, regular ones two with thousands separators,
// and millions and above are shortened (1.23M). Digits are rounded down.
func FormatCryptoBalance(amount sdkmath.LegacyDec) string {
	if amount.IsNil() {
		return "0.00"
	}
	value, err := decimal.NewFromString(amount.String())
	if err != nil {
		return amount.String()
	}

	abs := value.Abs()
	switch {
	case abs.IsZero():
		return "0.00"
	case abs.LessThan(dustThreshold):
		if value.IsNegative() {
			return "-<0.00001"
		}
		return "<0.00001"
	case abs.LessThan(tenDecimal):
		return value.Truncate(4).StringFixed(4)
	case abs.LessThan(millionDecimal):
		return groupThousands(value.Truncate(2).StringFixed(2))
	}

	for _, s := range shorthandLimits {
		if abs.GreaterThanOrEqual(s.limit) {
			return value.Div(s.limit).Truncate(2).StringFixed(2) + s.suffix
		}
	}
	return value.Truncate(2).StringFixed(2)
}

// groupThousands inserts comma separators into the integer part of a fixed-point string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		return sign + b.String() + "." + fracPart
	}
	return sign + b.String()
}
