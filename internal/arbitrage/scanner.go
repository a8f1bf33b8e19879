package arbitrage

import (
	"log/slog"
	"sort"
	"time"

	"arbtrack/internal/fees"
	"arbtrack/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Config holds the scan parameters for sizing the simulated trade and its
// withdrawal leg.
type Config struct {
	// TradeAmount is the crypto quantity each opportunity is costed at.
	TradeAmount decimal.Decimal
	// WithdrawalCurrency and WithdrawalMethod select the withdrawal fee row.
	WithdrawalCurrency string
	WithdrawalMethod   string
	// MaxPriceAge excludes price points older than this from scans.
	// Zero disables the staleness check.
	MaxPriceAge time.Duration
}

// Scanner detects arbitrage opportunities over a single immutable snapshot.
// It is stateless per call: all state lives in the stores that produced the
// snapshot, so scanning the same snapshot twice yields identical results.
type Scanner struct {
	calc   *fees.Calculator
	cfg    Config
	logger *slog.Logger
}

// NewScanner creates a Scanner costing opportunities through calc.
func NewScanner(calc *fees.Calculator, cfg Config, logger *slog.Logger) *Scanner {
	if cfg.TradeAmount.IsZero() {
		cfg.TradeAmount = decimal.NewFromInt(1)
	}
	return &Scanner{calc: calc, cfg: cfg, logger: logger}
}

// usdPoint is one price observation normalized to USD.
type usdPoint struct {
	crypto   string
	exchange string
	fiat     string
	priceUSD decimal.Decimal
}

// normalize flattens a snapshot into USD-normalized points. Entries whose fiat
// has no resolvable rate, whose price is not positive, or which fall outside
// the staleness window are skipped rather than treated as zero.
func (s *Scanner) normalize(snap model.PriceSnapshot, rates model.RateSnapshot) []usdPoint {
	var cutoff time.Time
	if s.cfg.MaxPriceAge > 0 {
		cutoff = time.Now().Add(-s.cfg.MaxPriceAge)
	}

	var points []usdPoint
	for crypto, exchanges := range snap {
		for exchange, fiats := range exchanges {
			for fiat, point := range fiats {
				if !point.Price.IsPositive() {
					continue
				}
				if !cutoff.IsZero() && point.ObservedAt.Before(cutoff) {
					continue
				}
				rate, ok := rates.Rate(fiat)
				if !ok {
					continue
				}
				points = append(points, usdPoint{
					crypto:   crypto,
					exchange: exchange,
					fiat:     fiat,
					priceUSD: point.Price.Mul(rate),
				})
			}
		}
	}
	return points
}

// Scan runs the cross-exchange, cross-fiat pass: for each crypto it compares
// every (exchange, fiat) listing across all exchanges at once and reports the
// widest buy-low/sell-high pairing, ranked by spread percentage.
func (s *Scanner) Scan(snap model.PriceSnapshot, rates model.RateSnapshot) model.ScanResult {
	points := s.normalize(snap, rates)
	if len(points) < 2 {
		return model.ScanResult{
			Status:  model.StatusWaiting,
			Message: "waiting for price data",
		}
	}

	opportunities := s.rank(s.extremesPerCrypto(points, false), rates)
	return s.resolve(opportunities)
}

// ScanBest runs both passes and returns the single best opportunity by spread
// percentage, or nil with the combined status when there is none.
func (s *Scanner) ScanBest(snap model.PriceSnapshot, rates model.RateSnapshot) (*model.ArbitrageOpportunity, model.ScanStatus) {
	cross := s.Scan(snap, rates)
	intra := s.ScanIntraExchange(snap, rates)

	best := cross.Best
	if intra.Best != nil && (best == nil || intra.Best.SpreadPct.GreaterThan(best.SpreadPct)) {
		best = intra.Best
	}
	if best != nil {
		return best, model.StatusSuccess
	}
	if cross.Status == model.StatusWaiting {
		return nil, model.StatusWaiting
	}
	return nil, model.StatusNoArbitrage
}

// ScanIntraExchange runs the single-exchange, cross-fiat pass: each exchange
// is considered in isolation and a candidate needs at least two fiat listings
// for the same crypto on that one exchange.
func (s *Scanner) ScanIntraExchange(snap model.PriceSnapshot, rates model.RateSnapshot) model.ScanResult {
	points := s.normalize(snap, rates)
	if len(points) < 2 {
		return model.ScanResult{
			Status:  model.StatusWaiting,
			Message: "waiting for price data",
		}
	}

	// Partition by exchange and find extremes within each partition.
	byExchange := make(map[string][]usdPoint)
	for _, p := range points {
		byExchange[p.exchange] = append(byExchange[p.exchange], p)
	}

	var candidates []candidate
	for _, part := range byExchange {
		candidates = append(candidates, s.extremesPerCrypto(part, true)...)
	}
	return s.resolve(s.rank(candidates, rates))
}

// candidate pairs the lowest and highest USD point found for one crypto
// within one comparison scope.
type candidate struct {
	low, high usdPoint
}

// extremesPerCrypto finds the global minimum and maximum USD price per crypto.
// When crossFiatOnly is set (intra-exchange pass) a crypto qualifies only with
// two or more distinct fiat listings.
func (s *Scanner) extremesPerCrypto(points []usdPoint, crossFiatOnly bool) []candidate {
	type extreme struct {
		low, high usdPoint
		fiats     map[string]struct{}
		seen      int
	}
	extremes := make(map[string]*extreme)
	for _, p := range points {
		e, ok := extremes[p.crypto]
		if !ok {
			extremes[p.crypto] = &extreme{low: p, high: p, fiats: map[string]struct{}{p.fiat: {}}, seen: 1}
			continue
		}
		e.seen++
		e.fiats[p.fiat] = struct{}{}
		if p.priceUSD.LessThan(e.low.priceUSD) {
			e.low = p
		}
		if p.priceUSD.GreaterThan(e.high.priceUSD) {
			e.high = p
		}
	}

	var out []candidate
	for _, e := range extremes {
		if e.seen < 2 {
			continue
		}
		if crossFiatOnly && len(e.fiats) < 2 {
			continue
		}
		// Drop trivial self-matches and non-positive spreads.
		if e.low.exchange == e.high.exchange && e.low.fiat == e.high.fiat {
			continue
		}
		if !e.high.priceUSD.GreaterThan(e.low.priceUSD) {
			continue
		}
		out = append(out, candidate{low: e.low, high: e.high})
	}
	return out
}

// rank costs out each candidate and sorts by spread percentage descending,
// stable on crypto symbol for ties.
func (s *Scanner) rank(candidates []candidate, rates model.RateSnapshot) []model.ArbitrageOpportunity {
	opportunities := make([]model.ArbitrageOpportunity, 0, len(candidates))
	for _, c := range candidates {
		if !c.low.priceUSD.IsPositive() {
			// Guards the spread-percentage division; a zero or negative
			// denominator drops the candidate rather than producing infinity.
			continue
		}
		spreadPct := c.high.priceUSD.Sub(c.low.priceUSD).Div(c.low.priceUSD).Mul(hundred)

		breakdown := s.calc.Calculate(fees.Leg{
			BuyExchange:        c.low.exchange,
			SellExchange:       c.high.exchange,
			Crypto:             c.low.crypto,
			Amount:             s.cfg.TradeAmount,
			BuyPriceUSD:        c.low.priceUSD,
			SellPriceUSD:       c.high.priceUSD,
			WithdrawalCurrency: s.cfg.WithdrawalCurrency,
			WithdrawalMethod:   s.cfg.WithdrawalMethod,
		}, rates)

		opportunities = append(opportunities, model.ArbitrageOpportunity{
			Crypto:       c.low.crypto,
			BuyExchange:  c.low.exchange,
			BuyFiat:      c.low.fiat,
			BuyPriceUSD:  c.low.priceUSD,
			SellExchange: c.high.exchange,
			SellFiat:     c.high.fiat,
			SellPriceUSD: c.high.priceUSD,
			SpreadPct:    spreadPct,
			TotalFeesUSD: breakdown.TotalFees,
			NetProfitUSD: breakdown.NetProfit,
		})
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		cmp := opportunities[i].SpreadPct.Cmp(opportunities[j].SpreadPct)
		if cmp != 0 {
			return cmp > 0
		}
		return opportunities[i].Crypto < opportunities[j].Crypto
	})
	return opportunities
}

func (s *Scanner) resolve(opportunities []model.ArbitrageOpportunity) model.ScanResult {
	if len(opportunities) == 0 {
		return model.ScanResult{
			Status:  model.StatusNoArbitrage,
			Message: "no arbitrage opportunities found",
		}
	}
	return model.ScanResult{
		Status:        model.StatusSuccess,
		Opportunities: opportunities,
		Best:          &opportunities[0],
	}
}
