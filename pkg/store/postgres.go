package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tradepulse/pkg/market"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

const createTrades = `
CREATE TABLE IF NOT EXISTS trades (
	id      BIGSERIAL PRIMARY KEY,
	ts      TIMESTAMPTZ NOT NULL,
	side    TEXT        NOT NULL,
	qty     NUMERIC     NOT NULL,
	price   NUMERIC     NOT NULL,
	symbol  TEXT        NOT NULL,
	source  TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_symbol_ts ON trades (symbol, ts);`

// Postgres stores trades for one symbol in a trades table.
type Postgres struct {
	db     *sql.DB
	symbol string
	loc    *time.Location
}

func NewPostgres(cfg PostgresConfig, symbol string, loc *time.Location) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(createTrades); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure trades table: %w", err)
	}

	return &Postgres{db: db, symbol: symbol, loc: loc}, nil
}

func (p *Postgres) Insert(ctx context.Context, t market.Trade) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO trades (ts, side, qty, price, symbol, source) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.Time, string(t.Side), t.Qty.String(), t.Price.String(), p.symbol, feedSource,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (p *Postgres) Since(ctx context.Context, cutoff time.Time) ([]market.Trade, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT ts, side, qty, price FROM trades WHERE symbol = $1 AND ts > $2 ORDER BY ts`,
		p.symbol, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []market.Trade
	for rows.Next() {
		var (
			ts         time.Time
			side       string
			qty, price string
		)
		if err := rows.Scan(&ts, &side, &qty, &price); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		q, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("stored quantity %q: %w", qty, err)
		}
		pr, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("stored price %q: %w", price, err)
		}

		trades = append(trades, market.Trade{
			Time:  ts.In(p.loc),
			Side:  market.Side(side),
			Qty:   q,
			Price: pr,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}

	return trades, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
