package feed

import (
	"context"

	"main/internal/model/enum"
)

// Credentials is the opaque authentication handle consumed at connect time.
// The pipeline never parses or refreshes it.
type Credentials struct {
	APIKey     string
	AuthToken  string
	FeedToken  string
	ClientCode string
}

// Ack is the per-call result of a subscribe or unsubscribe request.
type Ack struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (a Ack) OK() bool {
	return a.Status == "success"
}

// EventHandler receives one raw feed message. It must not block; the
// controller only parses and enqueues inside it.
type EventHandler func(topic string, fields map[string]any)

// ErrorHandler is invoked when the transport fails while streaming.
type ErrorHandler func(err error)

// Source is the upstream feed connection. Implementations emit asynchronous
// (topic, fields) events through the registered handler after a successful
// subscribe.
type Source interface {
	Connect(ctx context.Context, creds Credentials) error
	Subscribe(symbol, exchange string, mode enum.StreamMode) (Ack, error)
	Unsubscribe(symbol, exchange string) (Ack, error)
	Disconnect() error
	Connected() bool
	SetHandler(h EventHandler)
	SetErrorHandler(h ErrorHandler)
}
