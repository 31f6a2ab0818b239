package market

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradeAt(ts time.Time) Trade {
	return Trade{
		Time:  ts,
		Side:  Buy,
		Qty:   decimal.NewFromInt(1),
		Price: decimal.NewFromInt(2),
	}
}

func TestRecordEvictsStaleTrades(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuffer()

	// Retained by the first two inserts, stale by the final one.
	b.Record(tradeAt(now.Add(-24*time.Hour-30*time.Minute)), now.Add(-6*time.Hour))
	b.Record(tradeAt(now.Add(-2*time.Hour)), now.Add(-time.Hour))
	require.Equal(t, 2, b.Len())

	// The next insert re-evaluates the horizon against its own now.
	b.Record(tradeAt(now), now)
	assert.Equal(t, 2, b.Len())

	for _, tr := range b.Snapshot(time.Time{}) {
		assert.True(t, tr.Time.After(now.Add(-RetentionHorizon)))
	}
}

func TestEvictionBoundaryIsOpen(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-RetentionHorizon)
	b := NewBuffer()

	b.Record(tradeAt(cutoff), now)                      // exactly at the boundary
	b.Record(tradeAt(cutoff.Add(time.Nanosecond)), now) // just inside
	b.Record(tradeAt(now), now)

	trades := b.Snapshot(time.Time{})
	require.Len(t, trades, 2)
	for _, tr := range trades {
		assert.True(t, tr.Time.After(cutoff))
	}
}

func TestEvictBefore(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuffer()
	for i := 0; i < 10; i++ {
		b.Record(tradeAt(now.Add(time.Duration(i)*time.Minute)), now.Add(time.Duration(i)*time.Minute))
	}

	b.EvictBefore(now.Add(4 * time.Minute))
	assert.Equal(t, 5, b.Len())
}

func TestSnapshotFiltersAndCopies(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuffer()
	b.Record(tradeAt(now.Add(-3*time.Hour)), now)
	b.Record(tradeAt(now.Add(-time.Hour)), now)

	snap := b.Snapshot(now.Add(-2 * time.Hour))
	require.Len(t, snap, 1)

	// Mutating after the snapshot must not change what we already hold.
	b.Record(tradeAt(now), now)
	assert.Len(t, snap, 1)
}

func TestSnapshotSinceBoundaryIsOpen(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBuffer()
	b.Record(tradeAt(now), now)

	assert.Empty(t, b.Snapshot(now))
	assert.Len(t, b.Snapshot(now.Add(-time.Second)), 1)
}

func TestConcurrentRecordAndSnapshot(t *testing.T) {
	now := time.Now()
	b := NewBuffer()

	const writers = 4
	const perWriter = 250

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Record(tradeAt(now), now)
			}
		}()
	}

	// Readers race the writers; every snapshot must be internally
	// consistent (a plain copy, no partial eviction state).
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			snap := b.Snapshot(time.Time{})
			assert.LessOrEqual(t, len(snap), writers*perWriter)
		}
	}()

	wg.Wait()
	<-done

	assert.Equal(t, writers*perWriter, b.Len())
}
