package report

import (
	"fmt"
	"log/slog"
	"time"

	"tradepulse/pkg/market"
	"tradepulse/pkg/notify"
)

// TradeSource supplies the trades newer than cutoff, either from the
// in-memory buffer or from a remote store. The source is picked at
// startup and never switched mid-run.
type TradeSource func(cutoff time.Time) ([]market.Trade, error)

// Job aggregates and delivers one scheduled report.
type Job struct {
	Symbol string
	Source TradeSource
	Notify notify.Notifier
}

// Run builds the report for the window ending at now and sends it. A
// report goes out even when the window is empty; source and delivery
// errors are logged, never propagated, so the next cycle is unaffected.
func (j *Job) Run(now time.Time) {
	trades, err := j.Source(now.Add(-market.RetentionHorizon))
	if err != nil {
		slog.Error("report", "source", err)
		trades = nil
	}

	r := Aggregate(trades, now)
	subject := fmt.Sprintf("Bybit %s Report", j.Symbol)

	if err := j.Notify.Send(subject, r.Body()); err != nil {
		slog.Error("report", "send", err)
		return
	}

	slog.Info("report", "sent", subject, "trades", r.TradeCount, "activeMinutes", r.ActiveMinutes)
}
