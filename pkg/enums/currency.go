package enums

import "fmt"

// Currency represents supported monetary denominations for catalog prices.
type Currency string

const (
	CurrencyXOF Currency = "XOF"
	CurrencyXAF Currency = "XAF"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// DefaultCurrency applies when a product carries no currency.
const DefaultCurrency = CurrencyXOF

var validCurrencies = []Currency{
	CurrencyXOF,
	CurrencyXAF,
	CurrencyEUR,
	CurrencyUSD,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
