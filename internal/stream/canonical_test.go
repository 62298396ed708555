package stream

import (
	"testing"
	"time"

	"main/internal/symbols"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCanonicalizer(t *testing.T) *canonicalizer {
	t.Helper()
	table := symbols.NewTable()
	table.Add("2885", "RELIANCE", "NSE")
	c := newCanonicalizer(table)
	c.now = func() time.Time {
		return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	}
	return c
}

func TestCanonicalizeTopicKey(t *testing.T) {
	c := testCanonicalizer(t)

	tick, err := c.Canonicalize("NSE_RELIANCE", map[string]any{
		"lp": 2501.5,
		"v":  float64(1200),
	})
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE", tick.Symbol)
	assert.Equal(t, "NSE", tick.Exchange)
	assert.True(t, tick.LTP.Equal(decimal.NewFromFloat(2501.5)))
	assert.Equal(t, int64(1200), tick.Volume)
}

func TestCanonicalizeModeSuffixIgnored(t *testing.T) {
	c := testCanonicalizer(t)

	tick, err := c.Canonicalize("NSE_RELIANCE_QUOTE", map[string]any{"lp": 100.0})
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE", tick.Symbol)
}

func TestCanonicalizeTokenResolution(t *testing.T) {
	c := testCanonicalizer(t)

	tick, err := c.Canonicalize("", map[string]any{
		"tk": "2885",
		"lp": 2500.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE", tick.Symbol)
	assert.Equal(t, "NSE", tick.Exchange)
}

func TestCanonicalizeUnknownTokenRejected(t *testing.T) {
	c := testCanonicalizer(t)

	_, err := c.Canonicalize("", map[string]any{
		"tk": "9999",
		"lp": 2500.0,
	})
	assert.Equal(t, ErrUnresolvedSymbol, err)
}

func TestCanonicalizeNonPositivePriceRejected(t *testing.T) {
	c := testCanonicalizer(t)

	for _, fields := range []map[string]any{
		{"lp": 0.0},
		{"lp": -1.0},
		{},
	} {
		_, err := c.Canonicalize("NSE_RELIANCE", fields)
		assert.Equal(t, ErrInvalidPrice, err)
	}
}

func TestCanonicalizeMissingKeyRejected(t *testing.T) {
	c := testCanonicalizer(t)

	_, err := c.Canonicalize("", map[string]any{"lp": 100.0})
	assert.Equal(t, ErrUnresolvedSymbol, err)
}

func TestCanonicalizeFieldFallbacks(t *testing.T) {
	c := testCanonicalizer(t)

	tick, err := c.Canonicalize("NSE_RELIANCE", map[string]any{
		"ltp":    "2500.25",
		"close":  2490.0,
		"volume": "300",
		"oi":     float64(40),
		"bp1":    2500.0,
		"sp1":    2500.5,
	})
	require.NoError(t, err)
	assert.True(t, tick.LTP.Equal(decimal.RequireFromString("2500.25")))
	assert.True(t, tick.Close.Equal(decimal.NewFromInt(2490)))
	assert.Equal(t, int64(300), tick.Volume)
	assert.Equal(t, int64(40), tick.OI)
	assert.True(t, tick.Bid.Equal(decimal.NewFromInt(2500)))
}

func TestCanonicalizeCloseDefaultsToLTP(t *testing.T) {
	c := testCanonicalizer(t)

	tick, err := c.Canonicalize("NSE_RELIANCE", map[string]any{"lp": 123.0})
	require.NoError(t, err)
	assert.True(t, tick.Close.Equal(decimal.NewFromInt(123)))
}

func TestCanonicalizeFeedTimestampFallback(t *testing.T) {
	c := testCanonicalizer(t)

	tick, err := c.Canonicalize("NSE_RELIANCE", map[string]any{"lp": 100.0})
	require.NoError(t, err)
	assert.Equal(t, c.now().UnixMilli(), tick.FeedTS)

	tick, err = c.Canonicalize("NSE_RELIANCE", map[string]any{
		"lp": 100.0,
		"ft": float64(1756600000000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1756600000000), tick.FeedTS)
}
