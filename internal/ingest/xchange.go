package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// XChangeStrategy ingests fiat exchange rates from the xChangeAPI live feed.
//
// The feed frames every message with a leading type digit: '0' carries the
// schema handshake (field order, pair id mapping, time scaling), '1' carries
// a positional pipe-delimited data record, '2' is a heartbeat and '7'-'9'
// report pair subscription errors. Decode keeps the handshake state between
// calls; the supervisor drives it from a single goroutine.
type XChangeStrategy struct {
	apiKey string

	startTime float64
	timeMult  float64
	mapping   map[string]string
	order     []string
}

// NewXChangeStrategy creates an xChangeAPI strategy authenticating with apiKey.
func NewXChangeStrategy(apiKey string) *XChangeStrategy {
	return &XChangeStrategy{apiKey: apiKey}
}

func (s *XChangeStrategy) Name() string { return "xchangeapi" }

func (s *XChangeStrategy) ConnectionParams() ConnectionParams {
	return ConnectionParams{
		URI: fmt.Sprintf("wss://api.xchangeapi.com/websocket/live?api-key=%s", s.apiKey),
	}
}

// AuthMessage subscribes to the supported fiat pairs.
func (s *XChangeStrategy) AuthMessage() ([]byte, error) {
	return json.Marshal(map[string]any{"pairs": s.SupportedPairs()})
}

func (s *XChangeStrategy) SupportedPairs() []string {
	return []string{"EURUSD", "GBPUSD"}
}

// xchangeInit is the schema handshake payload of a '0' frame.
type xchangeInit struct {
	StartTime float64           `json:"start_time"`
	Mapping   map[string]string `json:"mapping"`
	Order     []string          `json:"order"`
	TimeMult  float64           `json:"time_mult"`
}

// Decode translates one xChangeAPI frame into a normalized rate update.
func (s *XChangeStrategy) Decode(raw []byte) (*Update, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	payload := raw[1:]

	switch raw[0] {
	case '0':
		var init xchangeInit
		if err := json.Unmarshal(payload, &init); err != nil {
			return nil, fmt.Errorf("xchangeapi: schema handshake: %w", err)
		}
		if init.TimeMult == 0 {
			return nil, fmt.Errorf("xchangeapi: schema handshake: zero time_mult")
		}
		s.startTime = init.StartTime
		s.timeMult = init.TimeMult
		s.mapping = init.Mapping
		s.order = init.Order
		return nil, nil
	case '1':
		return s.decodeRecord(string(payload))
	case '2':
		return &Update{Heartbeat: true}, nil
	case '7', '8', '9':
		return nil, fmt.Errorf("xchangeapi: pair error frame: %s", payload)
	default:
		return nil, nil
	}
}

// decodeRecord unpacks a positional pipe-delimited data record using the
// schema from the handshake.
func (s *XChangeStrategy) decodeRecord(record string) (*Update, error) {
	if s.order == nil {
		return nil, fmt.Errorf("xchangeapi: data record before schema handshake")
	}

	parts := strings.Split(record, "|")
	if len(parts) < len(s.order) {
		return nil, fmt.Errorf("xchangeapi: record has %d fields, schema expects %d", len(parts), len(s.order))
	}
	fields := make(map[string]string, len(s.order))
	for i, key := range s.order {
		fields[key] = parts[i]
	}

	pair, ok := s.mapping[fields["name"]]
	if !ok {
		return nil, fmt.Errorf("xchangeapi: unmapped pair id %q", fields["name"])
	}

	ask, err := decimal.NewFromString(fields["ask"])
	if err != nil {
		return nil, fmt.Errorf("xchangeapi: ask %q: %w", fields["ask"], err)
	}

	observedAt := time.Now()
	var offset float64
	if _, err := fmt.Sscanf(fields["time"], "%f", &offset); err == nil {
		seconds := offset/s.timeMult + s.startTime
		observedAt = time.Unix(int64(seconds), 0)
	}

	return &Update{Rate: &RateUpdate{
		Fiat:       normalizePair(pair),
		Rate:       ask,
		ObservedAt: observedAt,
	}}, nil
}

// normalizePair reduces a USD-quoted pair name to its base currency:
// EURUSD becomes EUR. Rates are always held relative to USD.
func normalizePair(pair string) string {
	if strings.HasSuffix(pair, "USD") && len(pair) > 3 {
		return pair[:len(pair)-3]
	}
	return pair
}
