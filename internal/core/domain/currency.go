package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 style code from the fixed supported set.
type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyGBP  Currency = "GBP"
	CurrencyNGN  Currency = "NGN"
	CurrencyUSDC Currency = "USDC"
)

// SupportedCurrencies lists every currency the venue quotes.
var SupportedCurrencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyNGN, CurrencyUSDC}

// ParseCurrency normalises and validates a currency code.
func ParseCurrency(code string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	return c, c.IsSupported()
}

// IsSupported reports whether c belongs to the supported set.
func (c Currency) IsSupported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// IsStablecoin reports whether c is a stablecoin rather than fiat.
func (c Currency) IsStablecoin() bool {
	return c == CurrencyUSDC
}

// IsFiat reports whether c is a supported fiat currency.
func (c Currency) IsFiat() bool {
	return c.IsSupported() && !c.IsStablecoin()
}

func (c Currency) String() string { return string(c) }

// MoneyScale is the number of decimal places kept for every amount.
const MoneyScale int32 = 2

// HasMoneyScale reports whether d carries no more than two decimal places.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}
