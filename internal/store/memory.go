package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"main/internal/model"
)

type dayKey struct {
	date time.Time
	key  model.Key
}

// Rough per-row footprints used to estimate storage size; Postgres reports
// pg_database_size instead.
const (
	tickLogRowBytes   = 160
	aggregateRowBytes = 200
)

// Memory is a Store kept entirely in process memory. It backs unit tests and
// --store=memory runs; the merge semantics are shared with Postgres.
type Memory struct {
	mu     sync.RWMutex
	rows   map[dayKey]model.DailyAggregate
	ticks  []model.TickLogEntry
	nextID uint64
}

func NewMemory() *Memory {
	return &Memory{
		rows:   make(map[dayKey]model.DailyAggregate),
		nextID: 1,
	}
}

func (s *Memory) Apply(_ context.Context, tick model.Tick, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := model.TradingDate(now)
	k := dayKey{date: date, key: tick.Key()}
	row, ok := s.rows[k]
	if !ok {
		row = seedAggregate(tick, date, now)
	} else {
		mergeAggregate(&row, tick, now)
	}
	s.rows[k] = row

	entry := tickLogEntry(tick, now)
	entry.ID = s.nextID
	s.nextID++
	s.ticks = append(s.ticks, entry)
	return nil
}

func (s *Memory) CurrentPrice(_ context.Context, symbol, exchange string, now time.Time) (model.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := dayKey{date: model.TradingDate(now), key: model.NewKey(symbol, exchange)}
	row, ok := s.rows[k]
	if !ok {
		return model.DailyAggregate{}, ErrNotFound
	}
	return row, nil
}

func (s *Memory) History(_ context.Context, symbol, exchange string, days int) ([]model.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []model.DailyAggregate
	for k, row := range s.rows {
		if k.key.Symbol == symbol && k.key.Exchange == exchange {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	if days > 0 && len(rows) > days {
		rows = rows[:days]
	}
	return rows, nil
}

func (s *Memory) RecentTicks(_ context.Context, symbol, exchange string, limit int) ([]model.TickLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.TickLogEntry
	for i := len(s.ticks) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		t := s.ticks[i]
		if t.Symbol == symbol && t.Exchange == exchange {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Memory) MarketStatus(_ context.Context, now time.Time) (model.MarketStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	date := model.TradingDate(now)
	var status model.MarketStatus
	for k, row := range s.rows {
		if !k.date.Equal(date) {
			continue
		}
		status.SymbolsTracked++
		if row.LastUpdated.After(status.LatestUpdate) {
			status.LatestUpdate = row.LastUpdated
		}
	}
	for _, t := range s.ticks {
		if !t.Timestamp.Before(date) {
			status.TicksToday++
		}
	}
	status.StorageBytes = int64(len(s.ticks))*tickLogRowBytes + int64(len(s.rows))*aggregateRowBytes
	return status, nil
}

func (s *Memory) PruneTicks(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.ticks[:0]
	var removed int64
	for _, t := range s.ticks {
		if t.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.ticks = kept
	return removed, nil
}

func (s *Memory) Close() error {
	return nil
}
