package main

import (
	"context"
	"testing"
	"time"

	"main/internal/config"
	"main/internal/fanout"
	"main/internal/feed"
	"main/internal/model/enum"
	"main/internal/store"
	"main/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	handler feed.EventHandler
}

func (s *stubFeed) Connect(context.Context, feed.Credentials) error { return nil }

func (s *stubFeed) Subscribe(string, string, enum.StreamMode) (feed.Ack, error) {
	return feed.Ack{Status: "success"}, nil
}

func (s *stubFeed) Unsubscribe(string, string) (feed.Ack, error) {
	return feed.Ack{Status: "success"}, nil
}

func (s *stubFeed) Disconnect() error { return nil }

func (s *stubFeed) Connected() bool { return true }

func (s *stubFeed) SetHandler(h feed.EventHandler) { s.handler = h }

func (s *stubFeed) SetErrorHandler(feed.ErrorHandler) {}

func TestBrokerTokenTable(t *testing.T) {
	table := brokerTokenTable([]config.SymbolEntry{
		{Symbol: "RELIANCE", Exchange: "NSE", Mode: "QUOTE", Token: "2885"},
		{Symbol: "TCS", Exchange: "NSE", Mode: "LTP"},
	})

	symbol, ok := table.ResolveBrokerSymbol("2885")
	require.True(t, ok)
	assert.Equal(t, "RELIANCE", symbol)

	exchange, ok := table.ResolveBrokerExchange("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, "NSE", exchange)

	_, ok = table.ResolveBrokerSymbol("11536")
	assert.False(t, ok, "tokenless entries add no mapping")
}

func TestConfiguredSymbols(t *testing.T) {
	out := configuredSymbols([]config.SymbolEntry{
		{Symbol: "RELIANCE", Exchange: "NSE", Mode: "LTP"},
		{Symbol: "TCS", Exchange: "NSE"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, enum.StreamModeLTP, out[0].Mode)
	assert.Equal(t, enum.StreamModeQuote, out[1].Mode, "missing mode defaults to QUOTE")
}

// A tick keyed by a bare broker token must resolve through the configured
// mapping and reach the store, wired the same way serve() wires it.
func TestTokenKeyedTickResolvesThroughConfiguredTable(t *testing.T) {
	entries := []config.SymbolEntry{
		{Symbol: "RELIANCE", Exchange: "NSE", Mode: "QUOTE", Token: "2885"},
	}

	st := store.NewMemory()
	registry := fanout.NewRegistry()
	broadcaster := fanout.NewBroadcaster(registry, time.Minute, time.Minute)
	src := &stubFeed{}

	controller := stream.NewController(src, feed.Credentials{}, st, broadcaster,
		brokerTokenTable(entries), configuredSymbols(entries), stream.Options{
			SubscribeGap: time.Millisecond,
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, controller.Start(ctx))
	defer controller.Stop()

	src.handler("NSE_2885", map[string]any{"lp": 2500.5, "v": 100.0})

	require.Eventually(t, func() bool {
		return controller.Status().StoreUpdates == 1
	}, 2*time.Second, 10*time.Millisecond)

	row, err := st.CurrentPrice(ctx, "RELIANCE", "NSE", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2500.5", row.Close.String())
	assert.Equal(t, uint64(0), controller.Status().TicksDropped)
}
