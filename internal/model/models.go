package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the currency all prices are normalized to before comparison.
// It is never stored as a mutable exchange-rate entry; its rate is always 1.
const BaseCurrency = "USD"

// PriceKey identifies a single price slot: one cryptocurrency listed on one
// exchange in one fiat currency.
type PriceKey struct {
	Crypto   string
	Exchange string
	Fiat     string
}

// PricePoint is the latest observed price for a PriceKey. A new observation
// replaces the previous one wholesale; no history is kept in memory.
type PricePoint struct {
	Price      decimal.Decimal
	ObservedAt time.Time
}

// ExchangeRate is a fiat→USD conversion rate with its observation time.
type ExchangeRate struct {
	Fiat       string
	Rate       decimal.Decimal
	ObservedAt time.Time
}

// PriceSnapshot is an immutable copy of the price state, nested
// crypto → exchange → fiat → PricePoint so a scan can iterate without locks.
type PriceSnapshot map[string]map[string]map[string]PricePoint

// RateSnapshot is an immutable copy of the fiat→USD rate table.
type RateSnapshot map[string]ExchangeRate

// Rate resolves a fiat to its USD rate. USD itself always resolves to 1.
// The second return is false when the fiat has no usable rate.
func (rs RateSnapshot) Rate(fiat string) (decimal.Decimal, bool) {
	if fiat == BaseCurrency {
		return decimal.NewFromInt(1), true
	}
	r, ok := rs[fiat]
	if !ok || !r.Rate.IsPositive() {
		return decimal.Decimal{}, false
	}
	return r.Rate, true
}

// ArbitrageOpportunity is one buy-low/sell-high candidate, fully derived from
// a single snapshot. Prices are USD-normalized.
type ArbitrageOpportunity struct {
	Crypto       string          `json:"crypto"`
	BuyExchange  string          `json:"buy_exchange"`
	BuyFiat      string          `json:"buy_fiat"`
	BuyPriceUSD  decimal.Decimal `json:"buy_price_usd"`
	SellExchange string          `json:"sell_exchange"`
	SellFiat     string          `json:"sell_fiat"`
	SellPriceUSD decimal.Decimal `json:"sell_price_usd"`
	SpreadPct    decimal.Decimal `json:"spread_pct"`
	TotalFeesUSD decimal.Decimal `json:"total_fees_usd"`
	NetProfitUSD decimal.Decimal `json:"net_profit_usd"`
}

// ScanStatus describes the outcome of an arbitrage scan.
type ScanStatus string

const (
	// StatusWaiting means fewer than two usable price points exist.
	StatusWaiting ScanStatus = "waiting"
	// StatusNoArbitrage means data exists but no positive spread was found.
	StatusNoArbitrage ScanStatus = "no_arbitrage"
	// StatusSuccess means at least one opportunity was found.
	StatusSuccess ScanStatus = "success"
)

// ScanResult is the full output of one scan: a status, the ranked list, and
// the single best candidate when one exists.
type ScanResult struct {
	Status        ScanStatus             `json:"status"`
	Message       string                 `json:"message,omitempty"`
	Opportunities []ArbitrageOpportunity `json:"opportunities,omitempty"`
	Best          *ArbitrageOpportunity  `json:"best,omitempty"`
}

// Spread summarises the highest and lowest price for one (crypto, fiat) pair
// across exchanges, in the pair's own fiat.
type Spread struct {
	Crypto          string          `json:"crypto"`
	Fiat            string          `json:"fiat"`
	HighestPrice    decimal.Decimal `json:"highest_price"`
	HighestExchange string          `json:"highest_exchange"`
	LowestPrice     decimal.Decimal `json:"lowest_price"`
	LowestExchange  string          `json:"lowest_exchange"`
}
