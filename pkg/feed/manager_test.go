package feed

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"tradepulse/pkg/market"
)

func testManager() *Manager {
	return NewManager(Config{
		URL:            "ws://127.0.0.1:1",
		Symbol:         "MONUSDT",
		ReconnectDelay: 5 * time.Second,
		PingInterval:   20 * time.Second,
		StallThreshold: 5 * time.Minute,
		WatchdogTick:   time.Minute,
		Location:       time.UTC,
	}, func(market.Trade) {})
}

func TestCheckStallTriggersPastThreshold(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager()
	m.state = Connected
	m.lastTrade = now.Add(-5*time.Minute - time.Second)

	require.True(t, m.checkStall(now))
	assert.Equal(t, Stalled, m.State())

	// The reconnect signal is pending for the run loop.
	select {
	case <-m.kick:
	default:
		t.Fatal("expected a reconnect signal")
	}
}

func TestCheckStallQuietWithinThreshold(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager()
	m.state = Connected
	m.lastTrade = now.Add(-4 * time.Minute)

	require.False(t, m.checkStall(now))
	assert.Equal(t, Connected, m.State())

	select {
	case <-m.kick:
		t.Fatal("unexpected reconnect signal")
	default:
	}
}

func TestCheckStallExactThresholdDoesNotTrigger(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager()
	m.state = Connected
	m.lastTrade = now.Add(-5 * time.Minute)

	assert.False(t, m.checkStall(now))
}

func TestCheckStallIgnoresDisconnected(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager()
	m.state = Disconnected
	m.lastTrade = now.Add(-time.Hour)

	assert.False(t, m.checkStall(now))
	assert.Equal(t, Disconnected, m.State())
}

func TestStallSignalNeverBlocks(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := testManager()

	// Two consecutive stalls with nobody draining the signal: the second
	// send must fall through the default branch, not deadlock.
	for i := 0; i < 2; i++ {
		m.state = Connected
		m.lastTrade = now.Add(-time.Hour)
		require.True(t, m.checkStall(now))
	}
}

func TestCloseIdempotent(t *testing.T) {
	m := testManager()

	// Never connected, then closed twice.
	m.Close()
	m.Close()
	assert.Nil(t, m.conn)
}

func TestRunRetriesDialFailuresUntilCancelled(t *testing.T) {
	m := testManager() // nothing listens on port 1
	m.cfg.ReconnectDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// Long enough for several failed dial attempts; the loop must keep
	// retrying instead of exiting.
	time.Sleep(100 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("run loop exited on transport errors")
	default:
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop on cancellation")
	}
	assert.Equal(t, Disconnected, m.State())
}

func TestReconnectAttemptsHonorBackoffDelay(t *testing.T) {
	// Accept and immediately drop every connection so the websocket
	// handshake fails; each accept timestamps one dial attempt.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var mu sync.Mutex
	var attempts []time.Time
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			attempts = append(attempts, time.Now())
			mu.Unlock()
			conn.Close()
		}
	}()

	const delay = 100 * time.Millisecond
	m := testManager()
	m.cfg.URL = "ws://" + ln.Addr().String()
	m.cfg.ReconnectDelay = delay

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(attempts) >= 4
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	// Three consecutive failures, each retried no sooner than the
	// configured delay.
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < 4; i++ {
		gap := attempts[i].Sub(attempts[i-1])
		assert.GreaterOrEqual(t, gap, delay, "attempt %d fired early", i)
	}
}

// wsEcho serves one websocket endpoint that holds connections open and
// discards everything the client sends.
func wsEcho(t *testing.T) (string, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	upgrader := websocket.FastHTTPUpgrader{}
	go fasthttp.Serve(ln, func(ctx *fasthttp.RequestCtx) {
		_ = upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		})
	})

	return "ws://" + ln.Addr().String(), func() { ln.Close() }
}

func TestStaleKickSettledOnConnect(t *testing.T) {
	url, stop := wsEcho(t)
	defer stop()

	m := testManager()
	m.cfg.URL = url

	// A stall signal left over from an earlier connection cycle.
	m.kick <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool {
		return m.State() == Connected
	}, 5*time.Second, 10*time.Millisecond)

	// Connecting consumed the leftover; the next transport error will
	// wait the full backoff instead of skipping it.
	select {
	case <-m.kick:
		t.Fatal("stale kick survived the reconnect")
	default:
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "stalled", Stalled.String())
}
