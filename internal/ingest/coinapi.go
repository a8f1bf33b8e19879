package ingest

import (
	"fmt"
	"strings"
	"time"

	"arbtrack/internal/model"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// coinAPISymbols is the symbol filter sent with the hello message.
var coinAPISymbols = []string{
	"BITSTAMP_SPOT_BTC_USD", "BITSTAMP_SPOT_ETH_USD",
	"KRAKEN_SPOT_BTC_USD", "KRAKEN_SPOT_ETH_USD",
	"BINANCE_SPOT_BTC_USDT", "BINANCE_SPOT_ETH_USDT",
	"COINBASE_SPOT_BTC_USD", "COINBASE_SPOT_ETH_USD",
}

// CoinAPIStrategy ingests crypto trade ticks from the CoinAPI aggregate feed.
// Symbols arrive as EXCHANGE_SPOT_BASE_QUOTE identifiers which are translated
// into canonical (crypto, exchange, fiat) triples.
type CoinAPIStrategy struct {
	apiKey string
}

// NewCoinAPIStrategy creates a CoinAPI strategy authenticating with apiKey.
func NewCoinAPIStrategy(apiKey string) *CoinAPIStrategy {
	return &CoinAPIStrategy{apiKey: apiKey}
}

func (s *CoinAPIStrategy) Name() string { return "coinapi" }

func (s *CoinAPIStrategy) ConnectionParams() ConnectionParams {
	return ConnectionParams{URI: "wss://ws.coinapi.io/v1/"}
}

// AuthMessage builds the hello message subscribing to trade ticks for the
// tracked symbols.
func (s *CoinAPIStrategy) AuthMessage() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":                       "hello",
		"apikey":                     s.apiKey,
		"heartbeat":                  false,
		"subscribe_data_type":        []string{"trade"},
		"subscribe_filter_symbol_id": coinAPISymbols,
	})
}

func (s *CoinAPIStrategy) SupportedPairs() []string {
	return []string{"BTC/USD", "ETH/USD", "BTC/EUR", "ETH/EUR"}
}

// coinAPITrade is the subset of the CoinAPI trade message we consume.
type coinAPITrade struct {
	Type         string      `json:"type"`
	SymbolID     string      `json:"symbol_id"`
	Price        json.Number `json:"price"`
	TimeExchange string      `json:"time_exchange"`
}

// Decode translates one CoinAPI message into a normalized price update.
// Messages for unsupported symbols or without a price decode to nil.
func (s *CoinAPIStrategy) Decode(raw []byte) (*Update, error) {
	var trade coinAPITrade
	if err := json.Unmarshal(raw, &trade); err != nil {
		return nil, fmt.Errorf("coinapi: unmarshal: %w", err)
	}
	if trade.Type == "error" {
		return nil, fmt.Errorf("coinapi: provider error message: %s", raw)
	}
	if trade.Price == "" || trade.SymbolID == "" {
		return nil, nil
	}

	fiat, ok := quoteFiat(trade.SymbolID)
	if !ok {
		return nil, nil
	}
	crypto, ok := baseCrypto(trade.SymbolID)
	if !ok {
		return nil, nil
	}
	exchange := NormalizeVenue(strings.SplitN(trade.SymbolID, "_", 2)[0])

	price, err := decimal.NewFromString(trade.Price.String())
	if err != nil {
		return nil, fmt.Errorf("coinapi: price %q: %w", trade.Price, err)
	}

	observedAt, err := time.Parse(time.RFC3339Nano, trade.TimeExchange)
	if err != nil {
		observedAt = time.Now()
	}

	return &Update{Price: &PriceUpdate{
		Key:   model.PriceKey{Crypto: crypto, Exchange: exchange, Fiat: fiat},
		Point: model.PricePoint{Price: price, ObservedAt: observedAt},
	}}, nil
}

// NormalizeVenue collapses provider-specific sub-venues to one canonical
// exchange id, e.g. any BINANCE* market identifier maps to BINANCE.
func NormalizeVenue(venue string) string {
	venue = strings.ToUpper(venue)
	if strings.Contains(venue, "BINANCE") {
		return "BINANCE"
	}
	return venue
}

// quoteFiat infers the quote currency from the symbol suffix. USDT quotes
// fold into USD.
func quoteFiat(symbol string) (string, bool) {
	switch {
	case strings.HasSuffix(symbol, "_USD"), strings.HasSuffix(symbol, "_USDT"):
		return "USD", true
	case strings.HasSuffix(symbol, "_EUR"):
		return "EUR", true
	default:
		return "", false
	}
}

func baseCrypto(symbol string) (string, bool) {
	switch {
	case strings.Contains(symbol, "BTC"):
		return "BTC", true
	case strings.Contains(symbol, "ETH"):
		return "ETH", true
	default:
		return "", false
	}
}
