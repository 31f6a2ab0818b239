package market

import (
	"sync"
	"time"
)

// RetentionHorizon is the maximum age of a trade kept in the buffer.
const RetentionHorizon = 24 * time.Hour

// Buffer is a time-bounded, insertion-ordered store of recent trades.
// Appends and eviction run under one mutex so a reader never observes a
// partially evicted state.
type Buffer struct {
	mu     sync.Mutex
	trades []Trade
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Record appends t and drops everything that has fallen out of the
// retention horizon as of now. It never fails; malformed trades are
// rejected upstream by the feed decoder.
func (b *Buffer) Record(t Trade, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trades = append(b.trades, t)
	b.evict(now.Add(-RetentionHorizon))
}

// EvictBefore drops every trade at or before cutoff. The boundary is
// open: a trade exactly at cutoff is evicted.
func (b *Buffer) EvictBefore(cutoff time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evict(cutoff)
}

func (b *Buffer) evict(cutoff time.Time) {
	kept := b.trades[:0]
	for _, t := range b.trades {
		if t.Time.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.trades = kept
}

// Snapshot returns a copy of all retained trades newer than since. The
// copy never aliases the live slice, so callers may iterate while the
// feed keeps appending.
func (b *Buffer) Snapshot(since time.Time) []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Trade, 0, len(b.trades))
	for _, t := range b.trades {
		if t.Time.After(since) {
			out = append(out, t)
		}
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.trades)
}
