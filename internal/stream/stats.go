package stream

import (
	"sync/atomic"
	"time"

	"main/internal/model/enum"
)

// stats collects lightweight pipeline counters.
type stats struct {
	messagesReceived atomic.Uint64
	ticksDropped     atomic.Uint64
	queueDrops       atomic.Uint64
	storeUpdates     atomic.Uint64
	storeErrors      atomic.Uint64
	lastMessageNano  atomic.Int64
	startNano        atomic.Int64
}

func (s *stats) markStart(now time.Time) {
	s.startNano.Store(now.UnixNano())
}

func (s *stats) markMessage(now time.Time) {
	s.messagesReceived.Add(1)
	s.lastMessageNano.Store(now.UnixNano())
}

// Status is a point-in-time view of the controller, reported truthfully:
// no internal error state is hidden from this surface.
type Status struct {
	Running           bool      `json:"running"`
	Connected         bool      `json:"connected"`
	State             string    `json:"state"`
	UptimeSeconds     float64   `json:"uptime_seconds"`
	Symbols           int       `json:"symbols"`
	Subscribers       int       `json:"subscribers"`
	MessagesReceived  uint64    `json:"messages_received"`
	TicksDropped      uint64    `json:"ticks_dropped"`
	QueueDrops        uint64    `json:"queue_drops"`
	StoreUpdates      uint64    `json:"store_updates"`
	StoreErrors       uint64    `json:"store_errors"`
	Broadcasts        uint64    `json:"broadcasts"`
	LastMessage       time.Time `json:"last_message"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
}

func (c *Controller) snapshotStatus(state enum.FeedState, now time.Time) Status {
	st := Status{
		Running:           c.running.Load(),
		Connected:         state == enum.FeedStreaming,
		State:             state.String(),
		Symbols:           c.symbolCount(),
		Subscribers:       c.broadcaster.Registry().ConsumerCount(),
		MessagesReceived:  c.stats.messagesReceived.Load(),
		TicksDropped:      c.stats.ticksDropped.Load(),
		QueueDrops:        c.stats.queueDrops.Load(),
		StoreUpdates:      c.stats.storeUpdates.Load(),
		StoreErrors:       c.stats.storeErrors.Load(),
		Broadcasts:        c.broadcaster.Broadcasts(),
		ReconnectAttempts: int(c.reconnects.Load()),
	}
	if start := c.stats.startNano.Load(); start > 0 && st.Running {
		st.UptimeSeconds = now.Sub(time.Unix(0, start)).Seconds()
	}
	if last := c.stats.lastMessageNano.Load(); last > 0 {
		st.LastMessage = time.Unix(0, last)
	}
	return st
}
