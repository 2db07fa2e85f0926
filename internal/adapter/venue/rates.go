package venue

import (
	"currency-conversion-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

type pair struct {
	from, to domain.Currency
}

// Directional rates. Reverse legs are quoted independently and are not the
// reciprocal of the forward leg; the spread is the venue's margin.
var rateTable = map[pair]decimal.Decimal{
	{domain.CurrencyUSD, domain.CurrencyNGN}:  decimal.RequireFromString("1500.00"),
	{domain.CurrencyNGN, domain.CurrencyUSD}:  decimal.RequireFromString("0.00066"),
	{domain.CurrencyUSD, domain.CurrencyEUR}:  decimal.RequireFromString("0.92"),
	{domain.CurrencyEUR, domain.CurrencyUSD}:  decimal.RequireFromString("1.08"),
	{domain.CurrencyUSD, domain.CurrencyGBP}:  decimal.RequireFromString("0.79"),
	{domain.CurrencyGBP, domain.CurrencyUSD}:  decimal.RequireFromString("1.26"),
	{domain.CurrencyUSD, domain.CurrencyUSDC}: decimal.RequireFromString("1.00"),
	{domain.CurrencyUSDC, domain.CurrencyUSD}: decimal.RequireFromString("1.00"),

	{domain.CurrencyEUR, domain.CurrencyNGN}:  decimal.RequireFromString("1620.00"),
	{domain.CurrencyNGN, domain.CurrencyEUR}:  decimal.RequireFromString("0.00061"),
	{domain.CurrencyEUR, domain.CurrencyGBP}:  decimal.RequireFromString("0.85"),
	{domain.CurrencyGBP, domain.CurrencyEUR}:  decimal.RequireFromString("1.17"),
	{domain.CurrencyEUR, domain.CurrencyUSDC}: decimal.RequireFromString("1.08"),
	{domain.CurrencyUSDC, domain.CurrencyEUR}: decimal.RequireFromString("0.92"),

	{domain.CurrencyGBP, domain.CurrencyNGN}:  decimal.RequireFromString("1890.00"),
	{domain.CurrencyNGN, domain.CurrencyGBP}:  decimal.RequireFromString("0.00052"),
	{domain.CurrencyGBP, domain.CurrencyUSDC}: decimal.RequireFromString("1.26"),
	{domain.CurrencyUSDC, domain.CurrencyGBP}: decimal.RequireFromString("0.79"),

	{domain.CurrencyNGN, domain.CurrencyUSDC}: decimal.RequireFromString("0.00066"),
	{domain.CurrencyUSDC, domain.CurrencyNGN}: decimal.RequireFromString("1495.00"),
}

var (
	stablecoinFeeRate = decimal.RequireFromString("0.005")
	standardFeeRate   = decimal.RequireFromString("0.01")
)

// Rate returns the quoted rate for from->to. Same-currency pairs quote 1.
func Rate(from, to domain.Currency) (decimal.Decimal, bool) {
	if from == to && from.IsSupported() {
		return decimal.NewFromInt(1), true
	}
	r, ok := rateTable[pair{from, to}]
	return r, ok
}

// FeeRate is 0.5% when exactly one side is fiat and the other USDC, 1% for
// every other pair.
func FeeRate(from, to domain.Currency) decimal.Decimal {
	if (from.IsFiat() && to.IsStablecoin()) || (from.IsStablecoin() && to.IsFiat()) {
		return stablecoinFeeRate
	}
	return standardFeeRate
}

// Fee is the fee charged on amount, in units of the source currency.
func Fee(from, to domain.Currency, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(FeeRate(from, to)).Round(domain.MoneyScale)
}
