package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyAggregate is the per-day OHLC row, keyed by (date, symbol, exchange).
// Open never changes once the row exists, high/low only widen, close tracks
// the latest accepted price and volume is the maximum cumulative value seen.
type DailyAggregate struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	Date        time.Time       `gorm:"uniqueIndex:uidx_day_key;index:idx_key_date" json:"date"`
	Symbol      string          `gorm:"uniqueIndex:uidx_day_key;index:idx_key_date;size:20" json:"symbol"`
	Exchange    string          `gorm:"uniqueIndex:uidx_day_key;index:idx_key_date;size:10" json:"exchange"`
	Open        decimal.Decimal `gorm:"type:decimal(18,4)" json:"open"`
	High        decimal.Decimal `gorm:"type:decimal(18,4)" json:"high"`
	Low         decimal.Decimal `gorm:"type:decimal(18,4)" json:"low"`
	Close       decimal.Decimal `gorm:"type:decimal(18,4)" json:"close"`
	Volume      int64           `json:"volume"`
	OI          int64           `json:"oi"`
	LastUpdated time.Time       `gorm:"index" json:"last_updated"`
	CreatedAt   time.Time       `json:"-"`
}

func (DailyAggregate) TableName() string {
	return "daily_aggregates"
}

func (a DailyAggregate) Key() Key {
	return Key{Symbol: a.Symbol, Exchange: a.Exchange}
}

// TickLogEntry is one accepted tick, appended for recent-history queries and
// debugging. Rows are pruned by the retention sweep only.
type TickLogEntry struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp time.Time       `gorm:"index:idx_tick_key_ts" json:"timestamp"`
	Symbol    string          `gorm:"index:idx_tick_key_ts;size:20" json:"symbol"`
	Exchange  string          `gorm:"index:idx_tick_key_ts;size:10" json:"exchange"`
	LTP       decimal.Decimal `gorm:"type:decimal(18,4)" json:"ltp"`
	Volume    int64           `json:"volume"`
	OI        int64           `json:"oi"`
	Bid       decimal.Decimal `gorm:"type:decimal(18,4)" json:"bid"`
	Ask       decimal.Decimal `gorm:"type:decimal(18,4)" json:"ask"`
	FeedTS    int64           `json:"feed_ts"`
}

func (TickLogEntry) TableName() string {
	return "tick_log"
}

// MarketStatus summarizes today's stored activity.
type MarketStatus struct {
	SymbolsTracked int       `json:"symbols_tracked"`
	LatestUpdate   time.Time `json:"latest_update"`
	TicksToday     int64     `json:"ticks_today"`
	StorageBytes   int64     `json:"storage_bytes"`
}
