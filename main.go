package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradepulse/pkg/config"
	"tradepulse/pkg/feed"
	"tradepulse/pkg/health"
	"tradepulse/pkg/market"
	"tradepulse/pkg/notify"
	"tradepulse/pkg/report"
	"tradepulse/pkg/sched"
	"tradepulse/pkg/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("startup", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"symbol", cfg.Symbol,
		"timezone", cfg.Location.String(),
		"tradeSource", cfg.TradeSource,
		"reportTimes", cfg.ReportTimes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buffer := market.NewBuffer()

	var trades store.TradeStore
	switch cfg.TradeSource {
	case config.SourcePostgres:
		if trades, err = store.NewPostgres(cfg.Postgres, cfg.Symbol, cfg.Location); err != nil {
			return err
		}
	case config.SourceRedis:
		if trades, err = store.NewRedis(ctx, cfg.Redis, cfg.Symbol, cfg.Location); err != nil {
			return err
		}
	}
	if trades != nil {
		defer trades.Close()
	}

	// Store writes happen off the read loop so a slow store can never
	// throttle ingestion into the buffer.
	var writer *store.Writer
	if trades != nil {
		writer = store.NewWriter(trades, 1024)
		go writer.Run(ctx)
	}

	manager := feed.NewManager(feed.Config{
		URL:            cfg.StreamURL,
		Symbol:         cfg.Symbol,
		ReconnectDelay: cfg.ReconnectDelay,
		PingInterval:   cfg.PingInterval,
		StallThreshold: cfg.StallThreshold,
		WatchdogTick:   cfg.WatchdogTick,
		Location:       cfg.Location,
	}, func(t market.Trade) {
		buffer.Record(t, time.Now().In(cfg.Location))
		if writer != nil {
			writer.Enqueue(t)
		}
	})

	job := &report.Job{
		Symbol: cfg.Symbol,
		Source: tradeSource(buffer, trades),
		Notify: &notify.EmailSender{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Sender:     cfg.EmailSender,
			Password:   cfg.EmailPassword,
			Recipients: cfg.EmailRecipients,
		},
	}

	times, err := sched.ParseTimes(cfg.ReportTimes)
	if err != nil {
		return err
	}
	scheduler := sched.New(times, cfg.Location, job.Run)

	go manager.Run(ctx)
	go manager.Watchdog(ctx)
	go scheduler.Run(ctx)
	go sched.Heartbeat(ctx, cfg.HeartbeatTick)
	go func() {
		if err := health.Serve(cfg.Port); err != nil {
			slog.Error("health", "serve", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	manager.Close()
	return nil
}

// tradeSource picks where the report job reads from: the remote store
// when one is configured, the in-memory buffer otherwise.
func tradeSource(buffer *market.Buffer, trades store.TradeStore) report.TradeSource {
	if trades == nil {
		return func(cutoff time.Time) ([]market.Trade, error) {
			return buffer.Snapshot(cutoff), nil
		}
	}
	return func(cutoff time.Time) ([]market.Trade, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return trades.Since(ctx, cutoff)
	}
}
