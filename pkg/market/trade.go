package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// Trade is one executed transaction as reported by the feed.
type Trade struct {
	Time  time.Time
	Side  Side
	Qty   decimal.Decimal
	Price decimal.Decimal
}

func (t Trade) Notional() decimal.Decimal {
	return t.Qty.Mul(t.Price)
}

// ParseTrades extracts the trade entries carried by one stream message.
// A message without a "data" payload (subscription acks, pongs) yields
// nil and no error. "data" may be a single trade object or an array;
// both normalize to the same slice.
func ParseTrades(msg []byte, loc *time.Location) ([]Trade, error) {
	data := gjson.GetBytes(msg, "data")
	if !data.Exists() {
		return nil, nil
	}

	entries := []gjson.Result{data}
	if data.IsArray() {
		entries = data.Array()
	}

	trades := make([]Trade, 0, len(entries))
	for _, entry := range entries {
		trade, err := parseTrade(entry, loc)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

func parseTrade(entry gjson.Result, loc *time.Location) (Trade, error) {
	side := Side(entry.Get("S").String())
	if side != Buy && side != Sell {
		return Trade{}, fmt.Errorf("unknown trade side %q", entry.Get("S").String())
	}

	// v and p arrive as strings on the v5 stream but older payloads used
	// bare numbers; gjson renders both as their string form.
	qty, err := decimal.NewFromString(entry.Get("v").String())
	if err != nil {
		return Trade{}, fmt.Errorf("invalid trade quantity %q: %w", entry.Get("v").String(), err)
	}
	if qty.IsNegative() {
		return Trade{}, fmt.Errorf("negative trade quantity %s", qty)
	}

	price, err := decimal.NewFromString(entry.Get("p").String())
	if err != nil {
		return Trade{}, fmt.Errorf("invalid trade price %q: %w", entry.Get("p").String(), err)
	}
	if !price.IsPositive() {
		return Trade{}, fmt.Errorf("non-positive trade price %s", price)
	}

	millis := entry.Get("T").Int()
	if millis <= 0 {
		return Trade{}, fmt.Errorf("invalid trade timestamp %q", entry.Get("T").String())
	}

	return Trade{
		Time:  time.UnixMilli(millis).UTC().In(loc),
		Side:  side,
		Qty:   qty,
		Price: price,
	}, nil
}
