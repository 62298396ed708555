package wsfeed

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/feed"
	"main/internal/model/enum"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrNotConnected = errors.New("wsfeed: not connected")
	ErrAckTimeout   = errors.New("wsfeed: ack timeout")
)

const ackTimeout = 10 * time.Second

// Client is a JSON-over-websocket feed.Source. The wire protocol carries
// op-framed control messages ({"op":"subscribe",...} answered by an ack with
// the same request id) and data frames ({"topic":..., "data":{...}}).
type Client struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	reqID     atomic.Uint64
	pending   map[uint64]chan feed.Ack
	readDone  chan struct{}

	handler    atomic.Pointer[feed.EventHandler]
	errHandler atomic.Pointer[feed.ErrorHandler]
}

func New(url string) *Client {
	return &Client{
		url:     url,
		pending: make(map[uint64]chan feed.Ack),
	}
}

func (c *Client) SetHandler(h feed.EventHandler) {
	c.handler.Store(&h)
}

func (c *Client) SetErrorHandler(h feed.ErrorHandler) {
	c.errHandler.Store(&h)
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

type controlMessage struct {
	Op       string   `json:"op"`
	ID       uint64   `json:"id,omitempty"`
	Args     []string `json:"args,omitempty"`
	Symbol   string   `json:"symbol,omitempty"`
	Exchange string   `json:"exchange,omitempty"`
	Mode     int      `json:"mode,omitempty"`
}

type inboundMessage struct {
	Op     string         `json:"op"`
	ID     uint64         `json:"id"`
	Status string         `json:"status"`
	Error  string         `json:"error"`
	Topic  string         `json:"topic"`
	Data   map[string]any `json:"data"`
}

// Connect dials the feed, hands over the credentials and waits for the
// server's connected confirmation. A confirmation that does not arrive
// before ctx expires fails the attempt; the caller re-enters backoff.
func (c *Client) Connect(ctx context.Context, creds feed.Credentials) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("wsfeed: already connected")
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial feed")
	}

	auth := controlMessage{
		Op:   "auth",
		Args: []string{creds.APIKey, creds.AuthToken, creds.FeedToken, creds.ClientCode},
	}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "write auth payload")
	}

	confirmed := make(chan error, 1)
	go c.awaitConnected(conn, confirmed)

	select {
	case err := <-confirmed:
		if err != nil {
			_ = conn.Close()
			return err
		}
	case <-ctx.Done():
		_ = conn.Close()
		return errors.Wrap(ctx.Err(), "wait for connect confirmation")
	}

	c.mu.Lock()
	c.conn = conn
	c.readDone = make(chan struct{})
	c.mu.Unlock()
	c.connected.Store(true)

	go c.readLoop(conn)
	logs.Info("feed connected")
	return nil
}

func (c *Client) awaitConnected(conn *websocket.Conn, confirmed chan<- error) {
	var msg inboundMessage
	if err := conn.ReadJSON(&msg); err != nil {
		confirmed <- errors.Wrap(err, "read connect confirmation")
		return
	}
	if msg.Op != "connected" {
		confirmed <- errors.Errorf("unexpected connect response op: %s", msg.Op)
		return
	}
	confirmed <- nil
}

// Subscribe issues one subscribe call and waits for its ack.
func (c *Client) Subscribe(symbol, exchange string, mode enum.StreamMode) (feed.Ack, error) {
	return c.control("subscribe", symbol, exchange, int(mode))
}

// Unsubscribe issues one unsubscribe call and waits for its ack.
func (c *Client) Unsubscribe(symbol, exchange string) (feed.Ack, error) {
	return c.control("unsubscribe", symbol, exchange, 0)
}

func (c *Client) control(op, symbol, exchange string, mode int) (feed.Ack, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.connected.Load() {
		return feed.Ack{}, ErrNotConnected
	}

	id := c.reqID.Add(1)
	ch := make(chan feed.Ack, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	msg := controlMessage{Op: op, ID: id, Symbol: symbol, Exchange: exchange, Mode: mode}
	c.mu.Lock()
	err := conn.WriteJSON(msg)
	c.mu.Unlock()
	if err != nil {
		return feed.Ack{}, errors.Wrap(err, "write "+op)
	}

	select {
	case ack := <-ch:
		return ack, nil
	case <-time.After(ackTimeout):
		return feed.Ack{}, ErrAckTimeout
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	c.mu.Lock()
	done := c.readDone
	c.mu.Unlock()
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if c.connected.CompareAndSwap(true, false) {
				if h := c.errHandler.Load(); h != nil {
					(*h)(err)
				}
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logs.Errorf("feed: drop unparseable frame: %v", err)
			continue
		}

		switch {
		case msg.Op == "ack":
			c.mu.Lock()
			ch := c.pending[msg.ID]
			c.mu.Unlock()
			if ch != nil {
				ch <- feed.Ack{Status: msg.Status, Error: msg.Error}
			}
		case msg.Topic != "":
			if h := c.handler.Load(); h != nil {
				(*h)(msg.Topic, msg.Data)
			}
		}
	}
}

// Disconnect closes the transport. The read loop observes the close and
// exits without firing the error handler.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	done := c.readDone
	c.conn = nil
	c.mu.Unlock()

	c.connected.Store(false)
	if conn == nil {
		return nil
	}
	err := conn.Close()
	if done != nil {
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
	return err
}
