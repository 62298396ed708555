package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"main/internal/fanout"
	"main/internal/model"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var errSendBufferFull = errors.New("server: client send buffer full")

var clientSeq atomic.Uint64

// wsCommand is the inbound control message on a stream socket.
type wsCommand struct {
	Action   string `json:"action"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

type wsReply struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// wsClient adapts one websocket connection into a fanout consumer. Sends
// are buffered; a full buffer fails the Send so the broadcaster drops the
// slow consumer instead of stalling the pipeline.
type wsClient struct {
	id       string
	conn     *websocket.Conn
	registry *fanout.Registry
	send     chan []byte
	done     chan struct{}
	closed   atomic.Bool
}

func newWSClient(conn *websocket.Conn, registry *fanout.Registry) *wsClient {
	return &wsClient{
		id:       fmt.Sprintf("ws-%d", clientSeq.Add(1)),
		conn:     conn,
		registry: registry,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errors.Errorf("server: client %s closed", c.id)
	default:
		return errSendBufferFull
	}
}

func (c *wsClient) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}

func (c *wsClient) run(initial []model.Key) {
	for _, key := range initial {
		c.registry.Subscribe(c, key)
	}
	go c.writePump()
	c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.registry.Drop(c)
		c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			c.reply(wsReply{Type: "error", Message: "invalid json"})
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *wsClient) handleCommand(cmd wsCommand) {
	symbol := strings.ToUpper(strings.TrimSpace(cmd.Symbol))
	exchange := strings.ToUpper(strings.TrimSpace(cmd.Exchange))

	switch cmd.Action {
	case "subscribe":
		if symbol == "" || exchange == "" {
			c.reply(wsReply{Type: "error", Message: "subscribe requires symbol and exchange"})
			return
		}
		c.registry.Subscribe(c, model.NewKey(symbol, exchange))
		c.reply(wsReply{Type: "subscribed", Message: symbol + "." + exchange})
	case "unsubscribe":
		if symbol == "" || exchange == "" {
			c.reply(wsReply{Type: "error", Message: "unsubscribe requires symbol and exchange"})
			return
		}
		c.registry.Unsubscribe(c, model.NewKey(symbol, exchange))
		c.reply(wsReply{Type: "unsubscribed", Message: symbol + "." + exchange})
	case "ping":
		c.reply(wsReply{Type: "pong"})
	default:
		c.reply(wsReply{Type: "error", Message: "unknown action: " + cmd.Action})
	}
}

func (c *wsClient) reply(r wsReply) {
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.Send(raw); err != nil {
		logs.Infof("reply to %s dropped: %v", c.id, err)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.registry.Drop(c)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.registry.Drop(c)
				c.Close()
				return
			}
		}
	}
}

// parseKeys parses a comma separated "SYMBOL.EXCHANGE" list.
func parseKeys(raw string) []model.Key {
	if raw == "" {
		return nil
	}
	var keys []model.Key
	for _, part := range strings.Split(raw, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ".", 2)
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			continue
		}
		keys = append(keys, model.NewKey(strings.ToUpper(fields[0]), strings.ToUpper(fields[1])))
	}
	return keys
}
