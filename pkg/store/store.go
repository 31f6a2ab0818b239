// Package store holds the optional remote trade stores. A store is a
// best-effort durable copy of the feed: ingest errors are logged by the
// caller and never block the in-memory path, and the report job may read
// from a store instead of the buffer when one is selected at startup.
package store

import (
	"context"
	"time"

	"tradepulse/pkg/market"
)

const feedSource = "bybit"

type TradeStore interface {
	Insert(ctx context.Context, t market.Trade) error
	Since(ctx context.Context, cutoff time.Time) ([]market.Trade, error)
	Close() error
}
