package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/model"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

const (
	DefaultPeriod          = 500 * time.Millisecond
	DefaultMinSendInterval = 500 * time.Millisecond
)

// Update is the payload delivered to consumers on each dissemination.
type Update struct {
	Type string     `json:"type"`
	Data model.Tick `json:"data"`
	TS   int64      `json:"ts"`
}

type cacheEntry struct {
	tick     model.Tick
	lastSent time.Time
}

// Broadcaster pushes the latest known price per key to registry members at a
// bounded rate. Ingestion updates the cache on every tick; delivery happens
// only on the periodic dissemination pass, at most once per key per
// minSendInterval, so burst-rate ingestion never floods consumers.
type Broadcaster struct {
	registry        *Registry
	period          time.Duration
	minSendInterval time.Duration

	mu     sync.Mutex
	latest map[model.Key]*cacheEntry
	dirty  map[model.Key]struct{}

	broadcasts atomic.Uint64
}

func NewBroadcaster(registry *Registry, period, minSendInterval time.Duration) *Broadcaster {
	if period <= 0 {
		period = DefaultPeriod
	}
	if minSendInterval <= 0 {
		minSendInterval = DefaultMinSendInterval
	}
	return &Broadcaster{
		registry:        registry,
		period:          period,
		minSendInterval: minSendInterval,
		latest:          make(map[model.Key]*cacheEntry),
		dirty:           make(map[model.Key]struct{}),
	}
}

func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// OnTick updates the latest-price cache and marks the key dirty. Never
// rate-limited here; the cap applies on the outbound side only.
func (b *Broadcaster) OnTick(tick model.Tick) {
	key := tick.Key()
	b.mu.Lock()
	entry := b.latest[key]
	if entry == nil {
		entry = &cacheEntry{}
		b.latest[key] = entry
	}
	entry.tick = tick
	b.dirty[key] = struct{}{}
	b.mu.Unlock()
}

// Broadcasts reports the number of delivered messages.
func (b *Broadcaster) Broadcasts() uint64 {
	return b.broadcasts.Load()
}

// Run drives the dissemination pass until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.Disseminate(now)
		}
	}
}

// Disseminate delivers the latest cached value for every dirty key whose
// per-key send interval has elapsed. Delivery failures drop the failing
// consumer and never abort delivery to the others.
func (b *Broadcaster) Disseminate(now time.Time) {
	type outbound struct {
		key  model.Key
		tick model.Tick
	}

	b.mu.Lock()
	due := make([]outbound, 0, len(b.dirty))
	for key := range b.dirty {
		entry := b.latest[key]
		if entry == nil {
			delete(b.dirty, key)
			continue
		}
		if !entry.lastSent.IsZero() && now.Sub(entry.lastSent) < b.minSendInterval {
			continue
		}
		due = append(due, outbound{key: key, tick: entry.tick})
		entry.lastSent = now
		delete(b.dirty, key)
	}
	b.mu.Unlock()

	for _, out := range due {
		subscribers := b.registry.Subscribers(out.key)
		if len(subscribers) == 0 {
			continue
		}
		payload, err := json.Marshal(Update{
			Type: "price_update",
			Data: out.tick,
			TS:   now.UnixMilli(),
		})
		if err != nil {
			logs.Errorf("marshal update for %s, err: %+v", out.key, err)
			continue
		}
		for _, c := range subscribers {
			if err := c.Send(payload); err != nil {
				logs.Errorf("drop consumer %s: %v", c.ID(), err)
				b.registry.Drop(c)
				c.Close()
				continue
			}
			b.broadcasts.Add(1)
		}
	}
}
