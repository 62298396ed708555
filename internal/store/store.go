package store

import (
	"context"
	"errors"
	"time"

	"main/internal/model"
)

var ErrNotFound = errors.New("store: not found")

// Store is durable keyed storage for per-day OHLC rows plus the append-only
// tick log. Writes are serialized per instance; reads may run concurrently
// with writes and always observe a consistent row.
type Store interface {
	// Apply upserts the day aggregate for the tick's key and appends one
	// tick-log entry, both inside a single exclusive critical section.
	Apply(ctx context.Context, tick model.Tick, now time.Time) error

	// CurrentPrice returns today's aggregate row or ErrNotFound.
	CurrentPrice(ctx context.Context, symbol, exchange string, now time.Time) (model.DailyAggregate, error)

	// History returns up to days most recent rows, newest first.
	History(ctx context.Context, symbol, exchange string, days int) ([]model.DailyAggregate, error)

	// RecentTicks returns up to limit tick-log rows, newest first.
	RecentTicks(ctx context.Context, symbol, exchange string, limit int) ([]model.TickLogEntry, error)

	// MarketStatus summarizes today's stored activity.
	MarketStatus(ctx context.Context, now time.Time) (model.MarketStatus, error)

	// PruneTicks deletes tick-log rows older than the cutoff and reports the
	// number removed. Aggregate rows are never pruned.
	PruneTicks(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
