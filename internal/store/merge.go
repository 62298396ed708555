package store

import (
	"time"

	"main/internal/model"
)

// seedAggregate builds the first row of the day for a key. Missing OHLC
// fields fall back to the tick's last price.
func seedAggregate(tick model.Tick, date, now time.Time) model.DailyAggregate {
	open := tick.Open
	if open.IsZero() {
		open = tick.LTP
	}
	high := tick.High
	if high.IsZero() {
		high = tick.LTP
	}
	low := tick.Low
	if low.IsZero() {
		low = tick.LTP
	}
	return model.DailyAggregate{
		Date:        date,
		Symbol:      tick.Symbol,
		Exchange:    tick.Exchange,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       tick.LTP,
		Volume:      tick.Volume,
		OI:          tick.OI,
		LastUpdated: now,
	}
}

// mergeAggregate folds one tick into an existing row. High/low only widen,
// close tracks the tick, volume keeps the maximum cumulative value seen so
// out-of-order delivery never regresses it, OI keeps the last positive value.
func mergeAggregate(row *model.DailyAggregate, tick model.Tick, now time.Time) {
	if tick.LTP.GreaterThan(row.High) {
		row.High = tick.LTP
	}
	if row.Low.Sign() <= 0 || tick.LTP.LessThan(row.Low) {
		row.Low = tick.LTP
	}
	row.Close = tick.LTP
	if tick.Volume > row.Volume {
		row.Volume = tick.Volume
	}
	if tick.OI > 0 {
		row.OI = tick.OI
	}
	row.LastUpdated = now
}

func tickLogEntry(tick model.Tick, now time.Time) model.TickLogEntry {
	return model.TickLogEntry{
		Timestamp: now,
		Symbol:    tick.Symbol,
		Exchange:  tick.Exchange,
		LTP:       tick.LTP,
		Volume:    tick.Volume,
		OI:        tick.OI,
		Bid:       tick.Bid,
		Ask:       tick.Ask,
		FeedTS:    tick.FeedTS,
	}
}
