package store

import (
	"fmt"
	"sync"

	"arbtrack/internal/model"
)

// PriceStore holds the latest known price per (crypto, exchange, fiat) triple.
// Update and Snapshot are safe for concurrent use; a snapshot never observes a
// half-written entry.
type PriceStore struct {
	mu     sync.RWMutex
	prices map[model.PriceKey]model.PricePoint
}

// NewPriceStore creates an empty PriceStore.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		prices: make(map[model.PriceKey]model.PricePoint),
	}
}

// Update overwrites the entry for key. A non-positive price is rejected with
// ErrInvalidObservation and the store is left unchanged.
func (s *PriceStore) Update(key model.PriceKey, point model.PricePoint) error {
	if !point.Price.IsPositive() {
		return fmt.Errorf("%w: price %s for %s/%s/%s", ErrInvalidObservation,
			point.Price, key.Crypto, key.Exchange, key.Fiat)
	}

	s.mu.Lock()
	s.prices[key] = point
	s.mu.Unlock()
	return nil
}

// Get returns the current entry for key, if present.
func (s *PriceStore) Get(key model.PriceKey) (model.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[key]
	return p, ok
}

// Len returns the number of price entries currently held.
func (s *PriceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}

// Snapshot returns a copy of the whole price state nested
// crypto → exchange → fiat, suitable for a scan to iterate without locking.
func (s *PriceStore) Snapshot() model.PriceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(model.PriceSnapshot)
	for key, point := range s.prices {
		exchanges, ok := snap[key.Crypto]
		if !ok {
			exchanges = make(map[string]map[string]model.PricePoint)
			snap[key.Crypto] = exchanges
		}
		fiats, ok := exchanges[key.Exchange]
		if !ok {
			fiats = make(map[string]model.PricePoint)
			exchanges[key.Exchange] = fiats
		}
		fiats[key.Fiat] = point
	}
	return snap
}

// Spreads reports, for each (crypto, fiat) pair, the highest and lowest price
// across exchanges in the pair's own fiat. Pairs listed on a single exchange
// are included with identical high and low legs.
func (s *PriceStore) Spreads() []model.Spread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type pair struct{ crypto, fiat string }
	spreads := make(map[pair]*model.Spread)
	for key, point := range s.prices {
		p := pair{key.Crypto, key.Fiat}
		sp, ok := spreads[p]
		if !ok {
			spreads[p] = &model.Spread{
				Crypto:          key.Crypto,
				Fiat:            key.Fiat,
				HighestPrice:    point.Price,
				HighestExchange: key.Exchange,
				LowestPrice:     point.Price,
				LowestExchange:  key.Exchange,
			}
			continue
		}
		if point.Price.GreaterThan(sp.HighestPrice) {
			sp.HighestPrice = point.Price
			sp.HighestExchange = key.Exchange
		}
		if point.Price.LessThan(sp.LowestPrice) {
			sp.LowestPrice = point.Price
			sp.LowestExchange = key.Exchange
		}
	}

	out := make([]model.Spread, 0, len(spreads))
	for _, sp := range spreads {
		out = append(out, *sp)
	}
	return out
}
