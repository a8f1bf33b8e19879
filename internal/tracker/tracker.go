// Package tracker wires the stores, scanner, ingestion supervisor and fan-out
// into one explicitly constructed service. Everything is passed by reference
// at construction; there is no ambient global state.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"arbtrack/internal/arbitrage"
	"arbtrack/internal/ingest"
	"arbtrack/internal/model"
	"arbtrack/internal/publish"
	"arbtrack/internal/store"
)

const helloInterval = 5 * time.Second

// EventArbitrageUpdate carries a model.ScanResult after each accepted update.
const EventArbitrageUpdate = "arbitrage_update"

// EventHello is a rate-limited liveness event for push subscribers.
const EventHello = "hello"

// HelloPayload is the body of an EventHello event.
type HelloPayload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceHook observes accepted price writes; wired to write-only sinks such as
// the CSV log. The core never reads anything back from a hook.
type PriceHook func(key model.PriceKey, point model.PricePoint)

// Tracker is the external surface of the core: ingestion in, queries and
// push events out.
type Tracker struct {
	prices     *store.PriceStore
	rates      *store.RateStore
	scanner    *arbitrage.Scanner
	publisher  *publish.Publisher
	supervisor *ingest.Supervisor
	logger     *slog.Logger

	scanInterval time.Duration

	mu        sync.Mutex
	lastScan  time.Time
	lastHello time.Time

	hookMu     sync.RWMutex
	priceHooks []PriceHook
}

// New constructs a Tracker over the given stores and scanner. scanInterval
// bounds scan frequency under bursty feeds: successive updates inside the
// interval coalesce into one scan. Zero disables coalescing.
func New(prices *store.PriceStore, rates *store.RateStore, scanner *arbitrage.Scanner,
	publisher *publish.Publisher, dialer ingest.Dialer, scanInterval time.Duration,
	logger *slog.Logger) *Tracker {

	t := &Tracker{
		prices:       prices,
		rates:        rates,
		scanner:      scanner,
		publisher:    publisher,
		logger:       logger,
		scanInterval: scanInterval,
	}
	t.supervisor = ingest.NewSupervisor(dialer, t.HandleUpdate, logger)
	return t
}

// RegisterStrategy wires a provider strategy into the ingestion supervisor.
func (t *Tracker) RegisterStrategy(name string, strategy ingest.Strategy) {
	t.supervisor.Register(name, strategy)
}

// Start launches the ingestion loops.
func (t *Tracker) Start(ctx context.Context) {
	t.supervisor.Start(ctx)
}

// Stop shuts down ingestion within a bounded time.
func (t *Tracker) Stop() {
	t.supervisor.Stop()
}

// OnPriceObserved registers a write-only hook for accepted price writes.
func (t *Tracker) OnPriceObserved(hook PriceHook) {
	t.hookMu.Lock()
	t.priceHooks = append(t.priceHooks, hook)
	t.hookMu.Unlock()
}

// OnOpportunity registers a push subscriber for scan results and liveness
// events.
func (t *Tracker) OnOpportunity(cb publish.Callback) {
	t.publisher.Subscribe(cb)
}

// GetLatestPrices returns an immutable copy of the price state.
func (t *Tracker) GetLatestPrices() model.PriceSnapshot {
	return t.prices.Snapshot()
}

// GetLatestRates returns an immutable copy of the rate table.
func (t *Tracker) GetLatestRates() model.RateSnapshot {
	return t.rates.Snapshot()
}

// GetSpreads reports per (crypto, fiat) highs and lows across exchanges.
func (t *Tracker) GetSpreads() []model.Spread {
	return t.prices.Spreads()
}

// GetArbitrageSnapshot runs a pull-based scan over the current state. Until
// every registered fiat has a valid rate it reports the waiting status, as a
// scan could otherwise silently exclude whole fiat legs.
func (t *Tracker) GetArbitrageSnapshot() model.ScanResult {
	if !t.rates.Ready() {
		return model.ScanResult{
			Status:  model.StatusWaiting,
			Message: "waiting for valid exchange rates",
		}
	}
	return t.scanner.Scan(t.prices.Snapshot(), t.rates.Snapshot())
}

// GetBestOpportunity returns the single best opportunity across both the
// cross-exchange and intra-exchange passes, with the same rate-readiness guard
// as GetArbitrageSnapshot.
func (t *Tracker) GetBestOpportunity() (*model.ArbitrageOpportunity, model.ScanStatus) {
	if !t.rates.Ready() {
		return nil, model.StatusWaiting
	}
	return t.scanner.ScanBest(t.prices.Snapshot(), t.rates.Snapshot())
}

// HandleUpdate applies one normalized provider update. Invalid observations
// are dropped at the store boundary and logged; they never abort ingestion.
// Each accepted update triggers a coalesced rescan and fan-out.
func (t *Tracker) HandleUpdate(provider string, update *ingest.Update) {
	switch {
	case update.Price != nil:
		key, point := update.Price.Key, update.Price.Point
		if err := t.prices.Update(key, point); err != nil {
			t.logger.Warn("price update dropped", "provider", provider, "error", err)
			return
		}
		t.notifyPriceHooks(key, point)
	case update.Rate != nil:
		r := update.Rate
		if err := t.rates.UpdateRate(r.Fiat, r.Rate, r.ObservedAt); err != nil {
			t.logger.Warn("rate update rejected", "provider", provider, "fiat", r.Fiat, "error", err)
			return
		}
	default:
		return
	}

	t.emitHello()
	t.maybeScan()
}

func (t *Tracker) notifyPriceHooks(key model.PriceKey, point model.PricePoint) {
	t.hookMu.RLock()
	hooks := t.priceHooks
	t.hookMu.RUnlock()
	for _, hook := range hooks {
		hook(key, point)
	}
}

// maybeScan runs a scan and publishes the result, coalescing bursts to at
// most one scan per interval.
func (t *Tracker) maybeScan() {
	t.mu.Lock()
	if t.scanInterval > 0 && time.Since(t.lastScan) < t.scanInterval {
		t.mu.Unlock()
		return
	}
	t.lastScan = time.Now()
	t.mu.Unlock()

	result := t.GetArbitrageSnapshot()
	t.publisher.Publish(EventArbitrageUpdate, result)

	if result.Status == model.StatusSuccess {
		best := result.Best
		t.logger.Info("arbitrage opportunity",
			"crypto", best.Crypto,
			"buy_exchange", best.BuyExchange,
			"buy_price_usd", best.BuyPriceUSD,
			"sell_exchange", best.SellExchange,
			"sell_price_usd", best.SellPriceUSD,
			"net_profit_usd", best.NetProfitUSD,
		)
	}
}

// emitHello publishes a liveness event at most once per helloInterval.
func (t *Tracker) emitHello() {
	t.mu.Lock()
	if time.Since(t.lastHello) < helloInterval {
		t.mu.Unlock()
		return
	}
	t.lastHello = time.Now()
	t.mu.Unlock()

	t.publisher.Publish(EventHello, HelloPayload{
		Message:   "price feed alive",
		Timestamp: time.Now(),
	})
}
