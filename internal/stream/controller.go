package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/bus"
	"main/internal/fanout"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
	"main/internal/symbols"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrAlreadyRunning = errors.New("stream: controller already running")
	ErrNoSymbols      = errors.New("stream: no symbols configured")
)

// TickSink receives accepted ticks out-of-band of the store, e.g. the
// optional redis latest-price mirror. Publish errors are logged only.
type TickSink interface {
	Publish(ctx context.Context, tick model.Tick) error
}

// Options tunes the controller. Zero values fall back to the upstream
// feed's documented defaults.
type Options struct {
	ConnectTimeout    time.Duration // per connection attempt, default 30s
	SubscribeGap      time.Duration // delay between subscribe calls, default 1s
	MinUpdateInterval time.Duration // per-key store write interval, default 1s
	Backoff           Backoff
	ReconnectBudget   int // consecutive failures before giving up, default 10
	QueueSize         int
}

func (o *Options) normalize() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 30 * time.Second
	}
	if o.SubscribeGap <= 0 {
		o.SubscribeGap = time.Second
	}
	if o.MinUpdateInterval <= 0 {
		o.MinUpdateInterval = time.Second
	}
	if o.Backoff.Base <= 0 && o.Backoff.Max <= 0 {
		o.Backoff = DefaultBackoff()
	}
	if o.ReconnectBudget <= 0 {
		o.ReconnectBudget = 10
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 4096
	}
}

// Controller owns the feed connection lifecycle and turns every inbound raw
// event into a validated tick routed to the store and the broadcaster.
// Exactly one lifecycle task drives the state machine; the raw-event
// callback only parses and enqueues.
type Controller struct {
	opt         Options
	source      feed.Source
	creds       feed.Credentials
	store       store.Store
	broadcaster *fanout.Broadcaster
	sinks       []TickSink
	canon       *canonicalizer
	queue       *bus.Queue

	mu      sync.Mutex
	symbols []model.SymbolConfig

	state      atomic.Uint32 // enum.FeedState
	running    atomic.Bool
	stopped    atomic.Bool
	reconnects atomic.Int32
	cancel     context.CancelFunc
	connLost   chan error
	lastWrite  map[model.Key]time.Time // ingest worker only
	stats      stats
	now        func() time.Time
}

func NewController(src feed.Source, creds feed.Credentials, st store.Store, b *fanout.Broadcaster, mapper symbols.Mapper, cfgSymbols []model.SymbolConfig, opt Options, sinks ...TickSink) *Controller {
	opt.normalize()
	return &Controller{
		opt:         opt,
		source:      src,
		creds:       creds,
		store:       st,
		broadcaster: b,
		sinks:       sinks,
		symbols:     append([]model.SymbolConfig(nil), cfgSymbols...),
		canon:       newCanonicalizer(mapper),
		queue:       bus.NewQueue(opt.QueueSize),
		connLost:    make(chan error, 1),
		lastWrite:   make(map[model.Key]time.Time),
		now:         time.Now,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() enum.FeedState {
	return enum.FeedState(c.state.Load())
}

func (c *Controller) setState(s enum.FeedState) {
	c.state.Store(uint32(s))
}

// Status reports the controller's true internal state.
func (c *Controller) Status() Status {
	return c.snapshotStatus(c.State(), c.now())
}

func (c *Controller) symbolCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.symbols)
}

// Start launches the lifecycle loop and the ingest worker. Configuration
// errors propagate to the caller; connection failures are handled by the
// reconnect policy.
func (c *Controller) Start(ctx context.Context) error {
	if c.source == nil || c.store == nil || c.broadcaster == nil {
		return errors.New("stream: missing collaborator")
	}
	if c.symbolCount() == 0 {
		return ErrNoSymbols
	}
	if c.stopped.Load() {
		return errors.New("stream: controller stopped")
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stats.markStart(c.now())

	c.source.SetHandler(c.onRawEvent)
	c.source.SetErrorHandler(func(err error) {
		select {
		case c.connLost <- err:
		default:
		}
	})

	go c.queue.Run(runCtx, c.handleEvent)
	go c.runLoop(runCtx)
	return nil
}

// Stop is terminal: it tears down the feed connection, clears all
// broadcaster subscriptions and disables reconnection.
func (c *Controller) Stop() {
	if !c.stopped.CompareAndSwap(false, true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	_ = c.source.Disconnect()
	c.queue.Close()
	c.broadcaster.Registry().Clear()
	c.running.Store(false)
	c.setState(enum.FeedDisconnected)
	logs.Info("streaming stopped")
}

func (c *Controller) runLoop(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(enum.FeedConnecting)
		if err := c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			c.reconnects.Store(int32(attempt))
			if attempt >= c.opt.ReconnectBudget {
				logs.Errorf("reconnect budget exhausted after %d attempts, err: %+v", attempt, err)
				c.fatal()
				return
			}
			c.setState(enum.FeedDisconnected)
			wait := c.opt.Backoff.Next(attempt)
			logs.Errorf("feed connect failed (attempt %d), retrying in %s, err: %+v", attempt, wait, err)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		attempt = 0
		c.reconnects.Store(0)

		c.setState(enum.FeedSubscribing)
		c.subscribeAll(ctx)
		if ctx.Err() != nil {
			_ = c.source.Disconnect()
			return
		}
		c.setState(enum.FeedStreaming)
		logs.Infof("streaming %d symbols", c.symbolCount())

		select {
		case <-ctx.Done():
			_ = c.source.Disconnect()
			return
		case err := <-c.connLost:
			logs.Errorf("feed connection lost: %v", err)
			_ = c.source.Disconnect()
			c.setState(enum.FeedDisconnected)
			attempt = 1
			c.reconnects.Store(1)
			if !sleep(ctx, c.opt.Backoff.Next(attempt)) {
				return
			}
		}
	}
}

// fatal surfaces an exhausted reconnect budget: streaming stays down until
// an operator restarts it explicitly.
func (c *Controller) fatal() {
	c.running.Store(false)
	c.setState(enum.FeedDisconnected)
}

func (c *Controller) connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, c.opt.ConnectTimeout)
	defer cancel()

	// An attempt that cannot confirm within the timeout fails and re-enters
	// backoff; an unconfirmed connection is never promoted to streaming.
	if err := c.source.Connect(connectCtx, c.creds); err != nil {
		return errors.Wrap(err, "connect feed")
	}
	return nil
}

// subscribeAll issues one subscribe call per configured symbol with a fixed
// inter-call gap for upstream rate limits. Individual failures are logged
// and never abort the pass.
func (c *Controller) subscribeAll(ctx context.Context) {
	c.mu.Lock()
	configured := append([]model.SymbolConfig(nil), c.symbols...)
	c.mu.Unlock()

	for i, sc := range configured {
		if ctx.Err() != nil {
			return
		}
		ack, err := c.source.Subscribe(sc.Symbol, sc.Exchange, sc.Mode)
		switch {
		case err != nil:
			logs.Errorf("subscribe %s.%s, err: %+v", sc.Symbol, sc.Exchange, err)
		case !ack.OK():
			logs.Errorf("subscribe %s.%s rejected: %s", sc.Symbol, sc.Exchange, ack.Error)
		default:
			logs.Infof("subscribed %s.%s (%s)", sc.Symbol, sc.Exchange, sc.Mode)
		}
		if i < len(configured)-1 {
			if !sleep(ctx, c.opt.SubscribeGap) {
				return
			}
		}
	}
}

// AddSymbol extends the configured set; when streaming it subscribes
// immediately, logging failures without affecting overall state.
func (c *Controller) AddSymbol(sc model.SymbolConfig) {
	c.mu.Lock()
	for _, existing := range c.symbols {
		if existing.Key() == sc.Key() {
			c.mu.Unlock()
			return
		}
	}
	c.symbols = append(c.symbols, sc)
	c.mu.Unlock()

	if c.State() == enum.FeedStreaming {
		ack, err := c.source.Subscribe(sc.Symbol, sc.Exchange, sc.Mode)
		if err != nil || !ack.OK() {
			logs.Errorf("subscribe new symbol %s.%s failed: %v %s", sc.Symbol, sc.Exchange, err, ack.Error)
			return
		}
		logs.Infof("added and subscribed %s.%s", sc.Symbol, sc.Exchange)
	}
}

// RemoveSymbol shrinks the configured set; when streaming it unsubscribes
// immediately.
func (c *Controller) RemoveSymbol(symbol, exchange string) {
	key := model.NewKey(symbol, exchange)
	c.mu.Lock()
	kept := c.symbols[:0]
	for _, sc := range c.symbols {
		if sc.Key() != key {
			kept = append(kept, sc)
		}
	}
	c.symbols = kept
	c.mu.Unlock()

	if c.State() == enum.FeedStreaming {
		if _, err := c.source.Unsubscribe(symbol, exchange); err != nil {
			logs.Errorf("unsubscribe %s.%s failed: %v", symbol, exchange, err)
			return
		}
		logs.Infof("removed and unsubscribed %s.%s", symbol, exchange)
	}
}

// onRawEvent is the feed callback: parse nothing, just enqueue.
func (c *Controller) onRawEvent(topic string, fields map[string]any) {
	if err := c.queue.TryPublish(bus.Event{Topic: topic, Fields: fields}); err != nil {
		c.stats.queueDrops.Add(1)
	}
}

// handleEvent runs on the single ingest worker, preserving per-key order.
func (c *Controller) handleEvent(e bus.Event) {
	now := c.now()
	c.stats.markMessage(now)

	tick, err := c.canon.Canonicalize(e.Topic, e.Fields)
	if err != nil {
		c.stats.ticksDropped.Add(1)
		if err == ErrUnresolvedSymbol {
			logs.Errorf("drop tick, topic %q: %v", e.Topic, err)
		}
		return
	}

	// Fanout first so live display never lags on a slow store write.
	c.broadcaster.OnTick(tick)
	for _, sink := range c.sinks {
		if err := sink.Publish(context.Background(), tick); err != nil {
			logs.Errorf("tick sink %s, err: %+v", tick.Key(), err)
		}
	}

	key := tick.Key()
	if last, ok := c.lastWrite[key]; ok && now.Sub(last) < c.opt.MinUpdateInterval {
		return
	}
	if err := c.store.Apply(context.Background(), tick, now); err != nil {
		c.stats.storeErrors.Add(1)
		logs.Errorf("persist tick %s, err: %+v", key, err)
		return
	}
	c.lastWrite[key] = now
	c.stats.storeUpdates.Add(1)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
