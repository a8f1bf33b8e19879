package store

import (
	"fmt"
	"sync"
	"time"

	"arbtrack/internal/model"

	"github.com/shopspring/decimal"
)

// RateStore holds fiat→USD conversion rates for a fixed set of currencies
// registered at construction. USD is implicit and always resolves to 1; it is
// never held as a mutable entry.
type RateStore struct {
	mu    sync.RWMutex
	rates map[string]model.ExchangeRate
}

// NewRateStore creates a RateStore with a slot per registered fiat. Slots start
// empty; Ready reports false until every slot has received a valid rate.
func NewRateStore(fiats []string) *RateStore {
	rates := make(map[string]model.ExchangeRate, len(fiats))
	for _, f := range fiats {
		if f == model.BaseCurrency {
			continue
		}
		rates[f] = model.ExchangeRate{Fiat: f}
	}
	return &RateStore{rates: rates}
}

// UpdateRate overwrites the rate for fiat. An unregistered fiat is rejected
// with ErrUnknownCurrency; a non-positive rate with ErrInvalidObservation.
func (s *RateStore) UpdateRate(fiat string, rate decimal.Decimal, observedAt time.Time) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: rate %s for %s", ErrInvalidObservation, rate, fiat)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rates[fiat]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCurrency, fiat)
	}
	s.rates[fiat] = model.ExchangeRate{Fiat: fiat, Rate: rate, ObservedAt: observedAt}
	return nil
}

// Rate resolves fiat to its USD rate; USD resolves to 1.
func (s *RateStore) Rate(fiat string) (decimal.Decimal, bool) {
	return s.Snapshot().Rate(fiat)
}

// Ready reports whether every registered fiat has received a valid rate.
func (s *RateStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rates {
		if !r.Rate.IsPositive() {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the rate table. Fiats that have not yet received
// a rate are omitted.
func (s *RateStore) Snapshot() model.RateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(model.RateSnapshot, len(s.rates))
	for fiat, r := range s.rates {
		if r.Rate.IsPositive() {
			snap[fiat] = r
		}
	}
	return snap
}
