package ingest

import (
	"net/http"
	"time"

	"arbtrack/internal/model"

	"github.com/shopspring/decimal"
)

// ConnectionParams tells the supervisor where and how to connect a strategy.
type ConnectionParams struct {
	URI    string
	Header http.Header
}

// PriceUpdate is a provider message normalized to a (crypto, exchange, fiat)
// price observation.
type PriceUpdate struct {
	Key   model.PriceKey
	Point model.PricePoint
}

// RateUpdate is a provider message normalized to a fiat→USD rate observation.
type RateUpdate struct {
	Fiat       string
	Rate       decimal.Decimal
	ObservedAt time.Time
}

// Update is the normalized result of decoding one provider message. Exactly
// one of Price or Rate is set, or Heartbeat is true for liveness-only
// messages.
type Update struct {
	Price     *PriceUpdate
	Rate      *RateUpdate
	Heartbeat bool
}

// Strategy owns the provider-specific half of an ingestion connection: where
// to connect, how to authenticate, and how to decode wire messages into
// normalized updates. Connection management and concurrency belong to the
// Supervisor, so Decode is plain and synchronous.
//
// Decode returns (nil, nil) for messages that do not map to a supported pair
// or a recognized type; those are ignored, not errors. A non-nil error means
// the message was unparseable and is dropped while the connection stays open.
type Strategy interface {
	Name() string
	ConnectionParams() ConnectionParams
	AuthMessage() ([]byte, error)
	Decode(raw []byte) (*Update, error)
	SupportedPairs() []string
}
