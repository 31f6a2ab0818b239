package store

import (
	"context"
	"log/slog"
	"time"

	"tradepulse/pkg/market"
)

// Writer decouples the feed loop from a remote store. Enqueue never
// blocks: trades go onto a bounded queue drained by Run, and a trade
// that arrives while the queue is full is dropped. The store is a
// best-effort copy, so a slow or down store costs queued trades, never
// ingestion latency.
type Writer struct {
	store   TradeStore
	queue   chan market.Trade
	timeout time.Duration
}

func NewWriter(s TradeStore, capacity int) *Writer {
	return &Writer{
		store:   s,
		queue:   make(chan market.Trade, capacity),
		timeout: 5 * time.Second,
	}
}

// Enqueue hands a trade to the drain loop without waiting on it.
func (w *Writer) Enqueue(t market.Trade) {
	select {
	case w.queue <- t:
	default:
		slog.Warn("store", "queueFull", "trade dropped")
	}
}

// Run drains the queue until ctx is done. Insert failures are logged
// and the loop moves on to the next trade.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			insertCtx, cancel := context.WithTimeout(ctx, w.timeout)
			if err := w.store.Insert(insertCtx, t); err != nil {
				slog.Error("store", "insert", err)
			}
			cancel()
		}
	}
}
