package store

import (
	"sync"
	"testing"
	"time"

	"arbtrack/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(crypto, exchange, fiat string) model.PriceKey {
	return model.PriceKey{Crypto: crypto, Exchange: exchange, Fiat: fiat}
}

func point(price float64) model.PricePoint {
	return model.PricePoint{Price: decimal.NewFromFloat(price), ObservedAt: time.Now()}
}

func TestPriceStore_UpdateAndSnapshot(t *testing.T) {
	s := NewPriceStore()

	require.NoError(t, s.Update(key("BTC", "COINBASE", "USD"), point(50000)))
	require.NoError(t, s.Update(key("BTC", "COINBASE", "USD"), point(50100)))

	snap := s.Snapshot()
	got := snap["BTC"]["COINBASE"]["USD"]
	assert.True(t, got.Price.Equal(decimal.NewFromFloat(50100)), "last write wins")

	// A snapshot is a copy: later writes must not leak into it.
	require.NoError(t, s.Update(key("BTC", "COINBASE", "USD"), point(60000)))
	assert.True(t, snap["BTC"]["COINBASE"]["USD"].Price.Equal(decimal.NewFromFloat(50100)))
}

func TestPriceStore_RejectsInvalidObservation(t *testing.T) {
	s := NewPriceStore()

	err := s.Update(key("BTC", "COINBASE", "USD"), point(0))
	assert.ErrorIs(t, err, ErrInvalidObservation)

	err = s.Update(key("BTC", "COINBASE", "USD"), point(-1))
	assert.ErrorIs(t, err, ErrInvalidObservation)

	assert.Equal(t, 0, s.Len())
}

func TestPriceStore_ConcurrentWritersDisjointKeys(t *testing.T) {
	s := NewPriceStore()
	exchanges := []string{"COINBASE", "BINANCE", "KRAKEN", "BITSTAMP"}

	var wg sync.WaitGroup
	for _, ex := range exchanges {
		wg.Add(1)
		go func(ex string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = s.Update(key("BTC", ex, "USD"), point(50000+float64(i)))
			}
		}(ex)
	}
	wg.Wait()

	snap := s.Snapshot()
	for _, ex := range exchanges {
		got, ok := snap["BTC"][ex]["USD"]
		require.True(t, ok, "missing entry for %s", ex)
		assert.True(t, got.Price.Equal(decimal.NewFromFloat(50099)), "no lost updates for %s", ex)
	}
}

func TestPriceStore_Spreads(t *testing.T) {
	s := NewPriceStore()
	require.NoError(t, s.Update(key("BTC", "COINBASE", "USD"), point(50000)))
	require.NoError(t, s.Update(key("BTC", "BINANCE", "USD"), point(50500)))
	require.NoError(t, s.Update(key("BTC", "KRAKEN", "USD"), point(50200)))

	spreads := s.Spreads()
	require.Len(t, spreads, 1)
	sp := spreads[0]
	assert.Equal(t, "BINANCE", sp.HighestExchange)
	assert.Equal(t, "COINBASE", sp.LowestExchange)
	assert.True(t, sp.HighestPrice.Equal(decimal.NewFromFloat(50500)))
	assert.True(t, sp.LowestPrice.Equal(decimal.NewFromFloat(50000)))
}

func TestRateStore_UpdateRate(t *testing.T) {
	s := NewRateStore([]string{"EUR", "GBP"})

	assert.False(t, s.Ready())

	require.NoError(t, s.UpdateRate("EUR", decimal.NewFromFloat(1.1), time.Now()))
	assert.False(t, s.Ready(), "GBP still missing")

	require.NoError(t, s.UpdateRate("GBP", decimal.NewFromFloat(1.3), time.Now()))
	assert.True(t, s.Ready())

	rate, ok := s.Rate("EUR")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromFloat(1.1)))
}

func TestRateStore_USDImplicit(t *testing.T) {
	s := NewRateStore([]string{"USD", "EUR"})

	// USD is never a mutable slot, even when listed.
	rate, ok := s.Rate("USD")
	require.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	err := s.UpdateRate("USD", decimal.NewFromFloat(0.9), time.Now())
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestRateStore_RejectsUnknownCurrency(t *testing.T) {
	s := NewRateStore([]string{"EUR", "GBP"})

	err := s.UpdateRate("JPY", decimal.NewFromFloat(0.0067), time.Now())
	assert.ErrorIs(t, err, ErrUnknownCurrency)

	// Store unchanged: subsequent snapshots behave as if nothing happened.
	assert.Empty(t, s.Snapshot())
}

func TestRateStore_RejectsInvalidRate(t *testing.T) {
	s := NewRateStore([]string{"EUR"})

	err := s.UpdateRate("EUR", decimal.Zero, time.Now())
	assert.ErrorIs(t, err, ErrInvalidObservation)

	_, ok := s.Rate("EUR")
	assert.False(t, ok)
}
