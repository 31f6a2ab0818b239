package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"tradepulse/pkg/market"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Stalled
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Stalled:
		return "stalled"
	default:
		return "unknown"
	}
}

type Config struct {
	URL            string
	Symbol         string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	StallThreshold time.Duration
	WatchdogTick   time.Duration
	Location       *time.Location
}

// Handler receives every decoded trade in arrival order.
type Handler func(market.Trade)

// Manager owns the websocket connection to the public trade stream for
// one symbol: it dials, subscribes, dispatches decoded trades, and
// reconnects forever on transport errors or a watchdog stall.
type Manager struct {
	cfg     Config
	handler Handler

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	lastTrade time.Time

	// kick is the watchdog's one-shot reconnect signal. Buffered so the
	// watchdog never blocks on it.
	kick chan struct{}

	now func() time.Time
}

func NewManager(cfg Config, handler Handler) *Manager {
	return &Manager{
		cfg:     cfg,
		handler: handler,
		kick:    make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Run blocks for the process lifetime. Any dial or mid-stream error
// tears the connection down and retries after the reconnect delay; a
// watchdog kick skips the delay. Only ctx cancellation ends the loop.
func (m *Manager) Run(ctx context.Context) {
	for {
		if err := m.connectAndStream(ctx); err != nil {
			slog.Error("feed", "stream", err)
		}

		m.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}

		slog.Info("feed", "disconnected", m.cfg.Symbol, "retryIn", m.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-m.kick:
		case <-time.After(m.cfg.ReconnectDelay):
		}
	}
}

func (m *Manager) connectAndStream(ctx context.Context) error {
	m.setState(Connecting)

	conn, _, err := websocket.DefaultDialer.Dial(m.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	defer m.Close()

	sub := fmt.Sprintf(`{"op":"subscribe","args":["publicTrade.%s"]}`, m.cfg.Symbol)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.cfg.Symbol, err)
	}

	m.mu.Lock()
	m.state = Connected
	m.lastTrade = m.now()
	m.mu.Unlock()

	// A kick from a stall on a previous connection is settled now; left
	// buffered it would skip the backoff after a later transport error.
	select {
	case <-m.kick:
	default:
	}

	slog.Info("feed", "connected", m.cfg.URL, "symbol", m.cfg.Symbol)

	done := make(chan struct{})
	defer close(done)
	go m.pingLoop(ctx, conn, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		trades, err := market.ParseTrades(msg, m.cfg.Location)
		if err != nil {
			// One bad message must not take the stream down.
			slog.Error("feed", "decode", err)
			continue
		}
		if len(trades) == 0 {
			continue
		}

		m.touch(m.now())
		for _, t := range trades {
			slog.Debug("trade",
				"time", t.Time.Format("15:04:05"),
				"side", t.Side,
				"qty", t.Qty,
				"price", t.Price)
			m.handler(t)
		}
	}
}

// pingLoop keeps the stream alive; Bybit closes connections that stay
// silent. Write errors are left for the read loop to surface.
func (m *Manager) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"ping"}`))
		}
	}
}

// Watchdog forces a reconnect when the connection is nominally open but
// has delivered no trades for longer than the stall threshold.
func (m *Manager) Watchdog(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.WatchdogTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkStall(m.now())
		}
	}
}

func (m *Manager) checkStall(now time.Time) bool {
	m.mu.Lock()
	idle := now.Sub(m.lastTrade)
	stalled := m.state == Connected && idle > m.cfg.StallThreshold
	var conn *websocket.Conn
	if stalled {
		m.state = Stalled
		conn = m.conn
		m.conn = nil
	}
	m.mu.Unlock()

	if !stalled {
		return false
	}

	slog.Warn("feed", "stall", m.cfg.Symbol, "idle", idle)
	if conn != nil {
		conn.Close()
	}
	select {
	case m.kick <- struct{}{}:
	default:
	}
	return true
}

// Close tears down the live connection. Safe to call on an already
// closed or never-opened connection.
func (m *Manager) Close() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastTradeAt reports when the stream last delivered a trade.
func (m *Manager) LastTradeAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTrade
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) touch(now time.Time) {
	m.mu.Lock()
	m.lastTrade = now
	m.mu.Unlock()
}
