package fees

import (
	"log/slog"
	"strings"

	"arbtrack/internal/model"

	"github.com/shopspring/decimal"
)

// Leg describes one buy/sell pair to cost out. Prices are USD-normalized.
type Leg struct {
	BuyExchange        string
	SellExchange       string
	Crypto             string
	Amount             decimal.Decimal
	BuyPriceUSD        decimal.Decimal
	SellPriceUSD       decimal.Decimal
	WithdrawalCurrency string
	WithdrawalMethod   string
}

// Breakdown itemises the cost of executing a Leg. All amounts are USD.
//
// PaymentFee is reported but deliberately excluded from TotalFees and
// NetProfit; callers that fund the buy leg through a fee-bearing payment
// method add it back explicitly.
type Breakdown struct {
	TradingFeeBuy  decimal.Decimal `json:"trading_fee_buy"`
	TradingFeeSell decimal.Decimal `json:"trading_fee_sell"`
	PaymentFee     decimal.Decimal `json:"payment_fee"`
	WithdrawalFee  decimal.Decimal `json:"withdrawal_fee"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	NetProfit      decimal.Decimal `json:"net_profit"`

	// Incomplete is set when any fee component was missing from the schedule
	// and defaulted to zero, so the figures understate the true cost.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Calculator turns a raw price spread into a realizable profit figure using a
// fee Schedule. Missing schedule entries degrade to zero rather than aborting,
// flagged via Breakdown.Incomplete.
type Calculator struct {
	schedule *Schedule
	logger   *slog.Logger
}

// NewCalculator creates a Calculator over the given schedule.
func NewCalculator(schedule *Schedule, logger *slog.Logger) *Calculator {
	return &Calculator{schedule: schedule, logger: logger}
}

// Calculate costs out a buy/sell leg pair. It is deterministic and never
// fails: unknown exchanges or assets contribute zero fees and mark the
// breakdown incomplete.
func (c *Calculator) Calculate(leg Leg, rates model.RateSnapshot) Breakdown {
	var b Breakdown

	b.TradingFeeBuy = leg.Amount.Mul(leg.BuyPriceUSD).Mul(c.fraction(leg.BuyExchange, Buy, &b))
	b.TradingFeeSell = leg.Amount.Mul(leg.SellPriceUSD).Mul(c.fraction(leg.SellExchange, Sell, &b))

	paymentFrac, err := c.schedule.PaymentFee(leg.BuyExchange)
	if err != nil {
		c.missing(err, &b)
	} else {
		b.PaymentFee = leg.Amount.Mul(leg.BuyPriceUSD).Mul(paymentFrac)
	}

	b.WithdrawalFee = c.withdrawalUSD(leg, rates, &b)

	b.TotalFees = b.TradingFeeBuy.Add(b.TradingFeeSell).Add(b.WithdrawalFee)
	b.GrossProfit = leg.SellPriceUSD.Sub(leg.BuyPriceUSD).Mul(leg.Amount)
	b.NetProfit = b.GrossProfit.Sub(b.TotalFees)
	return b
}

func (c *Calculator) fraction(exchange string, side Side, b *Breakdown) decimal.Decimal {
	frac, err := c.schedule.TradingFee(exchange, side)
	if err != nil {
		c.missing(err, b)
		return decimal.Decimal{}
	}
	return frac
}

// withdrawalUSD resolves the withdrawal leg in USD. A withdrawal denominated
// in the crypto itself converts via the sell-side USD price; a fiat withdrawal
// converts via the rate table.
func (c *Calculator) withdrawalUSD(leg Leg, rates model.RateSnapshot, b *Breakdown) decimal.Decimal {
	class := FiatAsset
	if strings.EqualFold(leg.WithdrawalCurrency, leg.Crypto) {
		class = CryptoAsset
	}

	fee, err := c.schedule.WithdrawalFee(leg.SellExchange, class, leg.WithdrawalCurrency, leg.WithdrawalMethod)
	if err != nil {
		c.missing(err, b)
		return decimal.Decimal{}
	}

	if class == CryptoAsset {
		return fee.Mul(leg.SellPriceUSD)
	}
	rate, ok := rates.Rate(strings.ToUpper(leg.WithdrawalCurrency))
	if !ok {
		c.logger.Warn("no rate for withdrawal currency, fee defaulted to zero",
			"currency", leg.WithdrawalCurrency)
		b.Incomplete = true
		return decimal.Decimal{}
	}
	return fee.Mul(rate)
}

func (c *Calculator) missing(err error, b *Breakdown) {
	c.logger.Warn("fee entry missing, defaulting to zero", "error", err)
	b.Incomplete = true
}
