package tracker

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"arbtrack/internal/arbitrage"
	"arbtrack/internal/fees"
	"arbtrack/internal/ingest"
	"arbtrack/internal/model"
	"arbtrack/internal/publish"
	"arbtrack/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	event   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) callback(event string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, recorded{event: event, payload: payload})
	r.mu.Unlock()
}

func (r *recorder) byEvent(event string) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, e := range r.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestTracker(t *testing.T, fiats []string, scanInterval time.Duration) (*Tracker, *store.PriceStore, *store.RateStore, *recorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	prices := store.NewPriceStore()
	rates := store.NewRateStore(fiats)
	calc := fees.NewCalculator(fees.DefaultSchedule(), logger)
	scanner := arbitrage.NewScanner(calc, arbitrage.Config{
		TradeAmount:        decimal.NewFromInt(1),
		WithdrawalCurrency: "USD",
		WithdrawalMethod:   "SWIFT",
	}, logger)
	publisher := publish.NewPublisher(logger)

	tr := New(prices, rates, scanner, publisher, &ingest.WebsocketDialer{}, scanInterval, logger)
	rec := &recorder{}
	tr.OnOpportunity(rec.callback)
	return tr, prices, rates, rec
}

func priceUpdate(crypto, exchange, fiat string, price float64) *ingest.Update {
	return &ingest.Update{Price: &ingest.PriceUpdate{
		Key: model.PriceKey{Crypto: crypto, Exchange: exchange, Fiat: fiat},
		Point: model.PricePoint{
			Price:      decimal.NewFromFloat(price),
			ObservedAt: time.Now(),
		},
	}}
}

func TestHandleUpdate_StoresPriceAndPublishesScan(t *testing.T) {
	tr, prices, _, rec := newTestTracker(t, nil, 0)

	tr.HandleUpdate("coinapi", priceUpdate("BTC", "COINBASE", "USD", 50000))
	tr.HandleUpdate("coinapi", priceUpdate("BTC", "BINANCE", "USD", 50500))

	assert.Equal(t, 2, prices.Len())

	scans := rec.byEvent(EventArbitrageUpdate)
	require.Len(t, scans, 2)

	last, ok := scans[1].payload.(model.ScanResult)
	require.True(t, ok)
	assert.Equal(t, model.StatusSuccess, last.Status)
	require.NotNil(t, last.Best)
	assert.Equal(t, "BTC", last.Best.Crypto)
	assert.Equal(t, "COINBASE", last.Best.BuyExchange)
	assert.Equal(t, "BINANCE", last.Best.SellExchange)
}

func TestHandleUpdate_RateFeedsScanner(t *testing.T) {
	tr, _, rates, _ := newTestTracker(t, []string{"EUR"}, 0)

	tr.HandleUpdate("xchangeapi", &ingest.Update{Rate: &ingest.RateUpdate{
		Fiat:       "EUR",
		Rate:       decimal.NewFromFloat(1.1),
		ObservedAt: time.Now(),
	}})

	rate, ok := rates.Rate("EUR")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromFloat(1.1)))
}

func TestGetArbitrageSnapshot_WaitsForRates(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, []string{"EUR", "GBP"}, 0)

	tr.HandleUpdate("coinapi", priceUpdate("BTC", "COINBASE", "USD", 50000))
	tr.HandleUpdate("coinapi", priceUpdate("BTC", "BINANCE", "USD", 50500))

	// EUR and GBP rates are registered but unseen; a scan now could silently
	// drop whole legs, so the snapshot holds at waiting.
	result := tr.GetArbitrageSnapshot()
	assert.Equal(t, model.StatusWaiting, result.Status)

	tr.HandleUpdate("xchangeapi", &ingest.Update{Rate: &ingest.RateUpdate{
		Fiat: "EUR", Rate: decimal.NewFromFloat(1.1), ObservedAt: time.Now(),
	}})
	tr.HandleUpdate("xchangeapi", &ingest.Update{Rate: &ingest.RateUpdate{
		Fiat: "GBP", Rate: decimal.NewFromFloat(1.3), ObservedAt: time.Now(),
	}})

	result = tr.GetArbitrageSnapshot()
	assert.Equal(t, model.StatusSuccess, result.Status)
}

func TestHandleUpdate_InvalidPriceDropped(t *testing.T) {
	tr, prices, _, rec := newTestTracker(t, nil, 0)

	tr.HandleUpdate("coinapi", &ingest.Update{Price: &ingest.PriceUpdate{
		Key:   model.PriceKey{Crypto: "BTC", Exchange: "COINBASE", Fiat: "USD"},
		Point: model.PricePoint{Price: decimal.Zero, ObservedAt: time.Now()},
	}})

	assert.Equal(t, 0, prices.Len())
	assert.Empty(t, rec.byEvent(EventArbitrageUpdate), "rejected updates trigger nothing")
}

func TestHandleUpdate_UnknownRateDropped(t *testing.T) {
	tr, _, rates, rec := newTestTracker(t, []string{"EUR"}, 0)

	tr.HandleUpdate("xchangeapi", &ingest.Update{Rate: &ingest.RateUpdate{
		Fiat: "JPY", Rate: decimal.NewFromFloat(0.0067), ObservedAt: time.Now(),
	}})

	_, ok := rates.Rate("JPY")
	assert.False(t, ok)
	assert.Empty(t, rec.byEvent(EventArbitrageUpdate))
}

func TestHandleUpdate_HelloRateLimited(t *testing.T) {
	tr, _, _, rec := newTestTracker(t, nil, 0)

	for i := 0; i < 10; i++ {
		tr.HandleUpdate("coinapi", priceUpdate("BTC", "COINBASE", "USD", 50000+float64(i)))
	}

	hellos := rec.byEvent(EventHello)
	assert.Len(t, hellos, 1, "hello is limited to one per interval")
}

func TestHandleUpdate_ScansCoalesce(t *testing.T) {
	tr, _, _, rec := newTestTracker(t, nil, time.Hour)

	for i := 0; i < 10; i++ {
		tr.HandleUpdate("coinapi", priceUpdate("BTC", "COINBASE", "USD", 50000+float64(i)))
	}

	scans := rec.byEvent(EventArbitrageUpdate)
	assert.Len(t, scans, 1, "burst collapses to one scan per interval")
}

func TestOnPriceObserved(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, nil, 0)

	var mu sync.Mutex
	var keys []model.PriceKey
	tr.OnPriceObserved(func(key model.PriceKey, point model.PricePoint) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
	})

	tr.HandleUpdate("coinapi", priceUpdate("ETH", "KRAKEN", "EUR", 2800))
	// Rejected writes never reach hooks.
	tr.HandleUpdate("coinapi", &ingest.Update{Price: &ingest.PriceUpdate{
		Key:   model.PriceKey{Crypto: "ETH", Exchange: "KRAKEN", Fiat: "EUR"},
		Point: model.PricePoint{Price: decimal.NewFromInt(-1), ObservedAt: time.Now()},
	}})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, keys, 1)
	assert.Equal(t, model.PriceKey{Crypto: "ETH", Exchange: "KRAKEN", Fiat: "EUR"}, keys[0])
}

func TestGetBestOpportunity(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, []string{"EUR"}, 0)

	tr.HandleUpdate("coinapi", priceUpdate("BTC", "COINBASE", "USD", 50000))
	tr.HandleUpdate("coinapi", priceUpdate("BTC", "COINBASE", "EUR", 44000))

	best, status := tr.GetBestOpportunity()
	assert.Nil(t, best)
	assert.Equal(t, model.StatusWaiting, status, "EUR rate still missing")

	tr.HandleUpdate("xchangeapi", &ingest.Update{Rate: &ingest.RateUpdate{
		Fiat: "EUR", Rate: decimal.NewFromFloat(1.1), ObservedAt: time.Now(),
	}})

	best, status = tr.GetBestOpportunity()
	require.Equal(t, model.StatusSuccess, status)
	require.NotNil(t, best)
	// Single exchange, two fiats: buy the EUR listing, sell the USD one.
	assert.Equal(t, "COINBASE", best.BuyExchange)
	assert.Equal(t, "EUR", best.BuyFiat)
	assert.Equal(t, "COINBASE", best.SellExchange)
	assert.Equal(t, "USD", best.SellFiat)
}

func TestGetSpreads(t *testing.T) {
	tr, _, _, _ := newTestTracker(t, nil, 0)

	tr.HandleUpdate("coinapi", priceUpdate("BTC", "COINBASE", "USD", 50000))
	tr.HandleUpdate("coinapi", priceUpdate("BTC", "BINANCE", "USD", 50500))

	spreads := tr.GetSpreads()
	require.Len(t, spreads, 1)
	assert.Equal(t, "BINANCE", spreads[0].HighestExchange)
	assert.Equal(t, "COINBASE", spreads[0].LowestExchange)
}
