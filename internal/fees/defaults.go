package fees

import "github.com/shopspring/decimal"

const fasterPayments = "Faster Payments"

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// DefaultSchedule returns the built-in fee schedule for the tracked exchanges.
// Trading and payment fees are fractions of notional at the highest published
// volume tier; withdrawal fees are absolute amounts in the asset's own unit.
func DefaultSchedule() *Schedule {
	return NewSchedule(map[string]ExchangeFees{
		"coinbase": {
			TradingFeeBuy:  d(0.0), // 0% for Coinbase One
			TradingFeeSell: d(0.0),
			PaymentFee:     d(0.0), // ACH is free
			Withdrawal: WithdrawalFees{
				Crypto: map[string]decimal.Decimal{
					"BTC": d(0.0), // free for Coinbase One
					"ETH": d(0.0),
				},
				Fiat: map[string]map[string]decimal.Decimal{
					"USD": {"ACH": d(0.0), "Wire": d(10.0)},
					"EUR": {"SEPA": d(0.15)},
					"GBP": {fasterPayments: d(0.0)},
				},
			},
		},
		"binance": {
			TradingFeeBuy:  d(0.00015), // VIP 9 taker
			TradingFeeSell: d(0.00015),
			PaymentFee:     d(0.0),
			Withdrawal: WithdrawalFees{
				Crypto: map[string]decimal.Decimal{
					"BTC": d(0.0005),
					"ETH": d(0.01),
				},
				Fiat: map[string]map[string]decimal.Decimal{
					"USD": {"SWIFT": d(15.0)},
					"EUR": {"SEPA": d(1.0)},
					"GBP": {fasterPayments: d(1.0)},
				},
			},
		},
		"bitstamp": {
			TradingFeeBuy:  d(0.0003), // $20M+ 30-day volume tier
			TradingFeeSell: d(0.0003),
			PaymentFee:     d(0.0),
			Withdrawal: WithdrawalFees{
				Crypto: map[string]decimal.Decimal{
					"BTC": d(0.0005),
					"ETH": d(0.005),
				},
				Fiat: map[string]map[string]decimal.Decimal{
					"USD": {"Wire": d(0.001)}, // 0.1%, min $7.50
					"EUR": {"SEPA": d(3.0)},
					"GBP": {fasterPayments: d(2.0)},
				},
			},
		},
		"kraken": {
			TradingFeeBuy:  d(0.0016), // $10M+ 30-day volume tier taker
			TradingFeeSell: d(0.0016),
			PaymentFee:     d(0.0),
			Withdrawal: WithdrawalFees{
				Crypto: map[string]decimal.Decimal{
					"BTC": d(0.00015),
					"ETH": d(0.0015),
				},
				Fiat: map[string]map[string]decimal.Decimal{
					"USD": {"Wire": d(5.0)},
					"EUR": {"SEPA": d(1.0)},
					"GBP": {fasterPayments: d(0.0)},
				},
			},
		},
	})
}
