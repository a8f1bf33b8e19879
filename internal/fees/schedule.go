package fees

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownFeeEntry is returned when a fee lookup names an exchange, asset or
// method the schedule has no entry for. Callers degrade the missing component
// to zero so a scan can still rank opportunities on partial fee information.
var ErrUnknownFeeEntry = errors.New("unknown fee entry")

// Side is the direction of a trade leg.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// AssetClass distinguishes crypto withdrawals from fiat withdrawals.
type AssetClass string

const (
	CryptoAsset AssetClass = "crypto"
	FiatAsset   AssetClass = "fiat"
)

// WithdrawalFees holds the per-asset withdrawal fee tables for one exchange.
// Crypto fees are denominated in the asset itself, fiat fees in the fiat
// currency, keyed by withdrawal method.
type WithdrawalFees struct {
	Crypto map[string]decimal.Decimal
	Fiat   map[string]map[string]decimal.Decimal
}

// ExchangeFees is the static fee configuration for one exchange. Fractions are
// of notional; withdrawal fees are absolute amounts in the asset's own unit.
type ExchangeFees struct {
	TradingFeeBuy  decimal.Decimal
	TradingFeeSell decimal.Decimal
	PaymentFee     decimal.Decimal
	Withdrawal     WithdrawalFees
}

// Schedule is a read-only per-exchange fee table. All lookups are
// case-insensitive on exchange and asset names. Schedules are immutable after
// construction and safe for concurrent reads.
type Schedule struct {
	exchanges map[string]ExchangeFees
}

// NewSchedule builds a Schedule from per-exchange fee entries.
func NewSchedule(entries map[string]ExchangeFees) *Schedule {
	exchanges := make(map[string]ExchangeFees, len(entries))
	for name, e := range entries {
		exchanges[strings.ToLower(name)] = e
	}
	return &Schedule{exchanges: exchanges}
}

func (s *Schedule) lookup(exchange string) (ExchangeFees, error) {
	e, ok := s.exchanges[strings.ToLower(exchange)]
	if !ok {
		return ExchangeFees{}, fmt.Errorf("%w: exchange %q", ErrUnknownFeeEntry, exchange)
	}
	return e, nil
}

// TradingFee returns the trading fee fraction for one side of a trade.
func (s *Schedule) TradingFee(exchange string, side Side) (decimal.Decimal, error) {
	e, err := s.lookup(exchange)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if side == Sell {
		return e.TradingFeeSell, nil
	}
	return e.TradingFeeBuy, nil
}

// PaymentFee returns the payment fee fraction for an exchange.
func (s *Schedule) PaymentFee(exchange string) (decimal.Decimal, error) {
	e, err := s.lookup(exchange)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return e.PaymentFee, nil
}

// WithdrawalFee returns the absolute withdrawal fee for an asset, in the
// asset's own unit. For fiat withdrawals the method selects the fee row;
// it is ignored for crypto withdrawals.
func (s *Schedule) WithdrawalFee(exchange string, class AssetClass, asset, method string) (decimal.Decimal, error) {
	e, err := s.lookup(exchange)
	if err != nil {
		return decimal.Decimal{}, err
	}
	asset = strings.ToUpper(asset)

	if class == CryptoAsset {
		fee, ok := e.Withdrawal.Crypto[asset]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: %s crypto withdrawal for %s", ErrUnknownFeeEntry, exchange, asset)
		}
		return fee, nil
	}

	methods, ok := e.Withdrawal.Fiat[asset]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s fiat withdrawal for %s", ErrUnknownFeeEntry, exchange, asset)
	}
	fee, ok := methods[method]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s %s withdrawal via %q", ErrUnknownFeeEntry, exchange, asset, method)
	}
	return fee, nil
}

// WithdrawalTable returns the withdrawal fee tables for an exchange, or zero
// tables when the exchange is unknown. The tables are shared, read-only data.
func (s *Schedule) WithdrawalTable(exchange string) WithdrawalFees {
	e, err := s.lookup(exchange)
	if err != nil {
		return WithdrawalFees{}
	}
	return e.Withdrawal
}

// Exchanges lists the exchange names the schedule covers, lowercased.
func (s *Schedule) Exchanges() []string {
	names := make([]string, 0, len(s.exchanges))
	for name := range s.exchanges {
		names = append(names, name)
	}
	return names
}
