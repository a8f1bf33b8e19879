package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff  = time.Second
	maxBackoff      = 16 * time.Second
	stopJoinTimeout = 5 * time.Second
)

// ConnState is the lifecycle state of one strategy connection.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Authenticating
	Streaming
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Streaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Conn is the minimal connection surface the supervisor needs. Closing a Conn
// must interrupt a blocked ReadMessage so shutdown completes in bounded time.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens connections; tests inject a fake to drive the loop without
// network sockets.
type Dialer interface {
	DialContext(ctx context.Context, uri string, header http.Header) (Conn, error)
}

// WebsocketDialer is the production Dialer backed by gorilla/websocket.
type WebsocketDialer struct{}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error { return c.conn.Close() }

func (d *WebsocketDialer) DialContext(ctx context.Context, uri string, header http.Header) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri, header)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// UpdateHandler receives every normalized update a strategy decodes while
// streaming. It runs on the strategy's connection goroutine.
type UpdateHandler func(provider string, update *Update)

// Supervisor runs one long-lived connection loop per registered strategy.
// Each loop walks Disconnected → Connecting → Authenticating → Streaming and
// drops back to Disconnected with backoff on any transport failure, for as
// long as the supervisor is running.
type Supervisor struct {
	dialer  Dialer
	handler UpdateHandler
	logger  *slog.Logger

	mu         sync.Mutex
	strategies map[string]Strategy
	conns      map[string]Conn
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewSupervisor creates a Supervisor delivering updates to handler.
func NewSupervisor(dialer Dialer, handler UpdateHandler, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		dialer:     dialer,
		handler:    handler,
		logger:     logger,
		strategies: make(map[string]Strategy),
		conns:      make(map[string]Conn),
	}
}

// Register wires a strategy under name. Registration after Start has no
// effect until the next Start.
func (s *Supervisor) Register(name string, strategy Strategy) {
	s.mu.Lock()
	s.strategies[name] = strategy
	s.mu.Unlock()
}

// Start launches one connection loop per registered strategy.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	strategies := make([]Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		strategies = append(strategies, st)
	}
	s.mu.Unlock()

	for _, strategy := range strategies {
		s.wg.Add(1)
		go func(st Strategy) {
			defer s.wg.Done()
			s.runLoop(ctx, st)
		}(strategy)
	}
}

// Stop flips the supervisor off, interrupts in-flight reads by closing the
// connections, and waits for every loop to exit within a bounded timeout.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	for name, conn := range s.conns {
		if err := conn.Close(); err != nil {
			s.logger.Debug("error closing connection on stop", "provider", name, "error", err)
		}
		delete(s.conns, name)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		s.logger.Warn("timeout waiting for ingestion loops to exit")
	}
}

func (s *Supervisor) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) trackConn(name string, conn Conn) {
	s.mu.Lock()
	s.conns[name] = conn
	s.mu.Unlock()
}

func (s *Supervisor) untrackConn(name string) {
	s.mu.Lock()
	delete(s.conns, name)
	s.mu.Unlock()
}

// runLoop is the per-strategy connection state machine.
func (s *Supervisor) runLoop(ctx context.Context, strategy Strategy) {
	logger := s.logger.With("provider", strategy.Name())
	backoff := initialBackoff

	for s.isRunning() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		params := strategy.ConnectionParams()
		logger.Info("connecting", "state", Connecting.String(), "backoff", backoff)
		conn, err := s.dialer.DialContext(ctx, params.URI, params.Header)
		if err != nil {
			logger.Error("connection failed", "error", err)
			if !s.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		s.trackConn(strategy.Name(), conn)

		logger.Info("authenticating", "state", Authenticating.String())
		if err := s.authenticate(strategy, conn); err != nil {
			logger.Error("authentication failed", "error", err)
			conn.Close()
			s.untrackConn(strategy.Name())
			if !s.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		// Connected and subscribed; reset backoff before streaming.
		backoff = initialBackoff
		logger.Info("streaming", "state", Streaming.String())
		s.stream(ctx, strategy, conn, logger)

		conn.Close()
		s.untrackConn(strategy.Name())
		logger.Info("disconnected", "state", Disconnected.String())

		if !s.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Supervisor) authenticate(strategy Strategy, conn Conn) error {
	msg, err := strategy.AuthMessage()
	if err != nil {
		return err
	}
	if len(msg) == 0 {
		return nil
	}
	return conn.WriteMessage(msg)
}

// stream reads until the connection fails or the supervisor stops. Decode
// errors drop the message and keep the connection open; only read errors
// force reconnection.
func (s *Supervisor) stream(ctx context.Context, strategy Strategy, conn Conn, logger *slog.Logger) {
	lastMessage := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := conn.ReadMessage()
		if err != nil {
			if s.isRunning() {
				logger.Error("read failed, reconnecting", "error", err)
			}
			return
		}
		lastMessage = time.Now()

		update, err := strategy.Decode(raw)
		if err != nil {
			logger.Warn("message dropped", "error", err)
			continue
		}
		if update == nil {
			continue
		}
		if update.Heartbeat {
			logger.Debug("heartbeat", "last_message", lastMessage)
			continue
		}
		s.handler(strategy.Name(), update)
	}
}

// sleep waits for the backoff delay, returning false when the context is
// cancelled first.
func (s *Supervisor) sleep(ctx context.Context, delay time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
