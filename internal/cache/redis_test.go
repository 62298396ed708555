package cache

import (
	"context"
	"testing"
	"time"

	"main/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LatestPrice, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLatestPrice(client, time.Minute), mr
}

func TestLatestPriceRoundTrip(t *testing.T) {
	lp, _ := newTestCache(t)
	ctx := context.Background()

	in := model.Tick{
		Symbol:   "RELIANCE",
		Exchange: "NSE",
		LTP:      decimal.RequireFromString("2500.25"),
		Volume:   1200,
		FeedTS:   1756600000000,
	}
	require.NoError(t, lp.Publish(ctx, in))

	out, err := lp.Latest(ctx, "RELIANCE", "NSE")
	require.NoError(t, err)
	assert.True(t, out.LTP.Equal(in.LTP))
	assert.Equal(t, in.Volume, out.Volume)
	assert.Equal(t, in.FeedTS, out.FeedTS)
}

func TestLatestPriceOverwrite(t *testing.T) {
	lp, _ := newTestCache(t)
	ctx := context.Background()

	first := model.Tick{Symbol: "RELIANCE", Exchange: "NSE", LTP: decimal.NewFromInt(2500)}
	second := model.Tick{Symbol: "RELIANCE", Exchange: "NSE", LTP: decimal.NewFromInt(2510)}
	require.NoError(t, lp.Publish(ctx, first))
	require.NoError(t, lp.Publish(ctx, second))

	out, err := lp.Latest(ctx, "RELIANCE", "NSE")
	require.NoError(t, err)
	assert.True(t, out.LTP.Equal(decimal.NewFromInt(2510)))
}

func TestLatestPriceMissAndExpiry(t *testing.T) {
	lp, mr := newTestCache(t)
	ctx := context.Background()

	_, err := lp.Latest(ctx, "RELIANCE", "NSE")
	assert.Equal(t, ErrNoPrice, err)

	tick := model.Tick{Symbol: "RELIANCE", Exchange: "NSE", LTP: decimal.NewFromInt(2500)}
	require.NoError(t, lp.Publish(ctx, tick))

	mr.FastForward(2 * time.Minute)
	_, err = lp.Latest(ctx, "RELIANCE", "NSE")
	assert.Equal(t, ErrNoPrice, err)
}
