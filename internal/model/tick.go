package model

import (
	"time"

	"main/internal/model/enum"

	"github.com/shopspring/decimal"
)

// Key identifies an instrument on one exchange.
type Key struct {
	Symbol   string
	Exchange string
}

func NewKey(symbol, exchange string) Key {
	return Key{Symbol: symbol, Exchange: exchange}
}

func (k Key) String() string {
	return k.Symbol + "." + k.Exchange
}

// Tick is one canonical price event produced from a raw feed message.
// It is never mutated after creation; the store and the broadcaster each
// keep their own copy.
type Tick struct {
	Symbol   string          `json:"symbol"`
	Exchange string          `json:"exchange"`
	LTP      decimal.Decimal `json:"ltp"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   int64           `json:"volume"`
	OI       int64           `json:"oi"`
	Bid      decimal.Decimal `json:"bid"`
	Ask      decimal.Decimal `json:"ask"`
	FeedTS   int64           `json:"feed_ts"` // feed timestamp, unix milliseconds
}

func (t Tick) Key() Key {
	return Key{Symbol: t.Symbol, Exchange: t.Exchange}
}

// SymbolConfig is one instrument the controller keeps subscribed.
type SymbolConfig struct {
	Symbol   string
	Exchange string
	Mode     enum.StreamMode
}

func (c SymbolConfig) Key() Key {
	return Key{Symbol: c.Symbol, Exchange: c.Exchange}
}

// TradingDate truncates a point in time to the aggregate row date, in UTC.
func TradingDate(ts time.Time) time.Time {
	return ts.UTC().Truncate(24 * time.Hour)
}
