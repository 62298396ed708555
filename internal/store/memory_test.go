package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryApplyAndCurrentPrice(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Apply(ctx, tick(100, 10), now))
	require.NoError(t, s.Apply(ctx, tick(102, 15), now.Add(time.Second)))

	row, err := s.CurrentPrice(ctx, "RELIANCE", "NSE", now)
	require.NoError(t, err)
	assert.True(t, row.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, row.Close.Equal(decimal.NewFromInt(102)))

	_, err = s.CurrentPrice(ctx, "TCS", "NSE", now)
	assert.Equal(t, ErrNotFound, err)
}

func TestMemoryDateRolloverStartsFreshRow(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	day1 := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 31, 9, 15, 0, 0, time.UTC)

	require.NoError(t, s.Apply(ctx, tick(100, 900), day1))
	require.NoError(t, s.Apply(ctx, tick(110, 50), day2))

	row, err := s.CurrentPrice(ctx, "RELIANCE", "NSE", day2)
	require.NoError(t, err)
	assert.True(t, row.Open.Equal(decimal.NewFromInt(110)), "new day opens at its first tick")
	assert.Equal(t, int64(50), row.Volume, "cumulative volume resets with the session")

	history, err := s.History(ctx, "RELIANCE", "NSE", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Date.After(history[1].Date), "newest first")
}

func TestMemoryRecentTicksNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Apply(ctx, tick(100+i, i), now.Add(time.Duration(i)*time.Second)))
	}

	out, err := s.RecentTicks(ctx, "RELIANCE", "NSE", 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[0].LTP.Equal(decimal.NewFromInt(105)))
	assert.True(t, out[2].LTP.Equal(decimal.NewFromInt(103)))
}

func TestMemoryPruneTicks(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	for day := 0; day < 10; day++ {
		require.NoError(t, s.Apply(ctx, tick(100, 1), base.AddDate(0, 0, day)))
	}

	cutoff := base.AddDate(0, 0, 3)
	removed, err := s.PruneTicks(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	out, err := s.RecentTicks(ctx, "RELIANCE", "NSE", 0)
	require.NoError(t, err)
	assert.Len(t, out, 7)
}

func TestMemoryMarketStatus(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)

	require.NoError(t, s.Apply(ctx, tick(100, 1), now))
	other := tick(200, 1)
	other.Symbol = "TCS"
	require.NoError(t, s.Apply(ctx, other, now.Add(time.Minute)))
	require.NoError(t, s.Apply(ctx, tick(99, 1), now.AddDate(0, 0, -2)))

	status, err := s.MarketStatus(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, status.SymbolsTracked)
	assert.Equal(t, int64(2), status.TicksToday)
	assert.Equal(t, now.Add(time.Minute), status.LatestUpdate)
}

func TestMemoryMarketStatusEstimatesStorage(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)

	empty, err := s.MarketStatus(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.StorageBytes)

	require.NoError(t, s.Apply(ctx, tick(100, 1), now))
	require.NoError(t, s.Apply(ctx, tick(101, 2), now.Add(time.Second)))

	status, err := s.MarketStatus(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2*tickLogRowBytes+aggregateRowBytes), status.StorageBytes)
}
