package store

import (
	"testing"
	"time"

	"main/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func tick(ltp int64, volume int64) model.Tick {
	return model.Tick{
		Symbol:   "RELIANCE",
		Exchange: "NSE",
		LTP:      decimal.NewFromInt(ltp),
		Volume:   volume,
	}
}

func TestSeedAggregateFallsBackToLTP(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	date := model.TradingDate(now)

	row := seedAggregate(tick(100, 10), date, now)

	assert.True(t, row.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, row.High.Equal(decimal.NewFromInt(100)))
	assert.True(t, row.Low.Equal(decimal.NewFromInt(100)))
	assert.True(t, row.Close.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(10), row.Volume)
}

func TestSeedAggregateKeepsFeedOHLC(t *testing.T) {
	now := time.Now().UTC()
	in := tick(101, 5)
	in.Open = decimal.NewFromInt(99)
	in.High = decimal.NewFromInt(103)
	in.Low = decimal.NewFromInt(97)

	row := seedAggregate(in, model.TradingDate(now), now)

	assert.True(t, row.Open.Equal(decimal.NewFromInt(99)))
	assert.True(t, row.High.Equal(decimal.NewFromInt(103)))
	assert.True(t, row.Low.Equal(decimal.NewFromInt(97)))
	assert.True(t, row.Close.Equal(decimal.NewFromInt(101)))
}

func TestMergeAggregateDaySequence(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 15, 0, 0, time.UTC)
	date := model.TradingDate(now)

	row := seedAggregate(tick(100, 10), date, now)
	for _, step := range []struct {
		ltp, volume int64
	}{
		{102, 15},
		{98, 15},
		{101, 20},
	} {
		mergeAggregate(&row, tick(step.ltp, step.volume), now)
	}

	assert.True(t, row.Open.Equal(decimal.NewFromInt(100)), "open never changes")
	assert.True(t, row.High.Equal(decimal.NewFromInt(102)), "high only widens")
	assert.True(t, row.Low.Equal(decimal.NewFromInt(98)), "low only widens")
	assert.True(t, row.Close.Equal(decimal.NewFromInt(101)), "close tracks last tick")
	assert.Equal(t, int64(20), row.Volume)
}

func TestMergeAggregateVolumeNeverRegresses(t *testing.T) {
	now := time.Now().UTC()
	row := seedAggregate(tick(100, 500), model.TradingDate(now), now)

	mergeAggregate(&row, tick(101, 300), now)

	assert.Equal(t, int64(500), row.Volume)
}

func TestMergeAggregateRepairsNonPositiveLow(t *testing.T) {
	now := time.Now().UTC()
	row := seedAggregate(tick(100, 1), model.TradingDate(now), now)
	row.Low = decimal.Zero

	mergeAggregate(&row, tick(105, 2), now)

	assert.True(t, row.Low.Equal(decimal.NewFromInt(105)))
}

func TestMergeAggregateKeepsLastPositiveOI(t *testing.T) {
	now := time.Now().UTC()
	in := tick(100, 1)
	in.OI = 700
	row := seedAggregate(in, model.TradingDate(now), now)

	next := tick(101, 2)
	next.OI = 0
	mergeAggregate(&row, next, now)
	assert.Equal(t, int64(700), row.OI)

	next.OI = 750
	mergeAggregate(&row, next, now)
	assert.Equal(t, int64(750), row.OI)
}
