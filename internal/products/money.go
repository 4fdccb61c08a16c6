package products

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with space thousands separators and no
// decimals when the amount is whole ("12 500", "1 999.50").
func FormatAmount(amount decimal.Decimal) string {
	str := amount.StringFixed(2)
	if amount.Equal(amount.Truncate(0)) {
		str = amount.StringFixed(0)
	}
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	intPart, frac, hasFrac := strings.Cut(str, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
