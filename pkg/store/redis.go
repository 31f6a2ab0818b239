package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"tradepulse/pkg/market"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis keeps trades in a per-symbol sorted set scored by epoch millis,
// which makes the since-cutoff read a single range query. The whole set
// expires with the retention horizon so an idle symbol cleans itself up.
type Redis struct {
	client *redis.Client
	symbol string
	key    string
	loc    *time.Location
}

type redisTrade struct {
	TS     int64  `json:"ts"`
	Side   string `json:"side"`
	Qty    string `json:"qty"`
	Price  string `json:"price"`
	Symbol string `json:"symbol"`
	Source string `json:"source"`
}

func NewRedis(ctx context.Context, cfg RedisConfig, symbol string, loc *time.Location) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{
		client: client,
		symbol: symbol,
		key:    "trades:" + symbol,
		loc:    loc,
	}, nil
}

func (r *Redis) Insert(ctx context.Context, t market.Trade) error {
	member, err := json.Marshal(redisTrade{
		TS:     t.Time.UnixMilli(),
		Side:   string(t.Side),
		Qty:    t.Qty.String(),
		Price:  t.Price.String(),
		Symbol: r.symbol,
		Source: feedSource,
	})
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	if err := r.client.ZAdd(ctx, r.key, redis.Z{
		Score:  float64(t.Time.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("zadd trade: %w", err)
	}
	r.client.Expire(ctx, r.key, market.RetentionHorizon)

	return nil
}

func (r *Redis) Since(ctx context.Context, cutoff time.Time) ([]market.Trade, error) {
	// Exclusive min keeps the open lower bound: a trade exactly at the
	// cutoff is not returned.
	members, err := r.client.ZRangeByScore(ctx, r.key, &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", cutoff.UnixMilli()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}

	trades := make([]market.Trade, 0, len(members))
	for _, member := range members {
		var rt redisTrade
		if err := json.Unmarshal([]byte(member), &rt); err != nil {
			return nil, fmt.Errorf("unmarshal trade: %w", err)
		}

		qty, err := decimal.NewFromString(rt.Qty)
		if err != nil {
			return nil, fmt.Errorf("stored quantity %q: %w", rt.Qty, err)
		}
		price, err := decimal.NewFromString(rt.Price)
		if err != nil {
			return nil, fmt.Errorf("stored price %q: %w", rt.Price, err)
		}

		trades = append(trades, market.Trade{
			Time:  time.UnixMilli(rt.TS).UTC().In(r.loc),
			Side:  market.Side(rt.Side),
			Qty:   qty,
			Price: price,
		})
	}

	return trades, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
