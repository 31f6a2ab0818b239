package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/pkg/market"
)

// Window is the time span one periodic report covers. BaseMinutes
// normalizes the trading-frequency metric.
type Window struct {
	Span        time.Duration
	Label       string
	BaseMinutes int64
}

// WindowFor picks the aggregation window from ref's local hour. The two
// daily report times land exactly on the 6h and 18h branches; a run at
// any other hour falls back to a full day.
func WindowFor(ref time.Time) Window {
	switch ref.Hour() {
	case 6:
		return Window{Span: 6 * time.Hour, Label: "Past 6 hours (00:00 to 06:00)", BaseMinutes: 6 * 60}
	case 18:
		return Window{Span: 18 * time.Hour, Label: "Past 18 hours (00:00 to 18:00)", BaseMinutes: 18 * 60}
	default:
		return Window{Span: 24 * time.Hour, Label: "Fallback: past 24 hours", BaseMinutes: 24 * 60}
	}
}

type Report struct {
	GeneratedAt   time.Time
	Window        Window
	BuyVolume     decimal.Decimal
	SellVolume    decimal.Decimal
	Notional      decimal.Decimal
	ActiveMinutes int
	TradeCount    int
}

// Aggregate summarizes the trades inside the window ending at ref. It is
// a pure pass over its input; an empty window yields a zero report.
func Aggregate(trades []market.Trade, ref time.Time) Report {
	w := WindowFor(ref)
	cutoff := ref.Add(-w.Span)

	r := Report{
		GeneratedAt: ref,
		Window:      w,
		BuyVolume:   decimal.Zero,
		SellVolume:  decimal.Zero,
		Notional:    decimal.Zero,
	}

	minutes := make(map[int64]struct{})
	for _, t := range trades {
		if !t.Time.After(cutoff) {
			continue
		}

		switch t.Side {
		case market.Buy:
			r.BuyVolume = r.BuyVolume.Add(t.Qty)
		case market.Sell:
			r.SellVolume = r.SellVolume.Add(t.Qty)
		}
		r.Notional = r.Notional.Add(t.Notional())

		minutes[t.Time.Unix()/60] = struct{}{}
		r.TradeCount++
	}
	r.ActiveMinutes = len(minutes)

	return r
}

// ActivityRatio is the share of minute buckets in the window that saw at
// least one trade, as a percentage rounded to two decimals.
func (r Report) ActivityRatio() decimal.Decimal {
	if r.Window.BaseMinutes == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(r.ActiveMinutes) * 100).
		DivRound(decimal.NewFromInt(r.Window.BaseMinutes), 2)
}

// Body renders the notification text.
func (r Report) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "%s\n\n", r.Window.Label)
	fmt.Fprintf(&b, "Buy Volume: %s\n", r.BuyVolume.StringFixed(2))
	fmt.Fprintf(&b, "Sell Volume: %s\n", r.SellVolume.StringFixed(2))
	fmt.Fprintf(&b, "Notional Volume: %s\n", r.Notional.StringFixed(2))
	fmt.Fprintf(&b, "Trading Frequency: %s%%", r.ActivityRatio().StringFixed(2))
	return b.String()
}
