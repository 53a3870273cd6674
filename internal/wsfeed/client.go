// Package wsfeed implements the single-symbol-stream WebSocket client (C3).
// gorilla/websocket supplies RFC 6455 framing (masked client frames, the
// upgrade handshake, ping/pong) so this package only has to own the
// reconnect/auth/subscribe protocol and the receive-loop lifecycle.
package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	minReconnectDelay = 2 * time.Second
	maxReconnectDelay = 10 * time.Second
	postCloseWait     = 200 * time.Millisecond
)

// MessageCallback processes one received text frame. It must never panic
// from the client's point of view: Client recovers and logs instead of
// propagating, matching the "noexcept callback" contract in the spec.
type MessageCallback func(text []byte) error

// SubscribeParams is the "params" payload of a subscribe/unsubscribe command,
// serialized verbatim by the caller's provider adapter (e.g. a channel list
// string for Polygon-style feeds).
type SubscribeParams = json.RawMessage

// Client is a reconnecting, authenticate-then-subscribe WebSocket client for
// a single upstream feed.
type Client struct {
	url string

	mu       sync.Mutex
	conn     *websocket.Conn
	apiKey   string
	subs     []SubscribeParams
	authSent bool

	callback atomic.Value // func([]byte) error

	stopped  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	onLog func(level, msg string)
}

// New builds a Client for the given WebSocket URL.
func New(url string, onLog func(level, msg string)) *Client {
	if onLog == nil {
		onLog = func(string, string) {}
	}
	return &Client{url: url, done: make(chan struct{}), onLog: onLog}
}

// SetMessageCallback installs the handler invoked for each received text
// frame.
func (c *Client) SetMessageCallback(cb MessageCallback) {
	c.callback.Store(cb)
}

// Connect dials the server, starts the receive loop and ping loop, and
// replays authentication + subscriptions recorded from prior calls (used
// both for the first connect and for reconnects).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("wsfeed: dial: %w", err)
	}
	c.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.receiveLoop()
	go c.pingLoop(conn)

	if c.apiKey != "" {
		if err := c.sendLocked(map[string]any{"action": "auth", "params": c.apiKey}); err != nil {
			return fmt.Errorf("wsfeed: replay auth: %w", err)
		}
	}
	for _, p := range c.subs {
		if err := c.sendLocked(map[string]any{"action": "subscribe", "params": p}); err != nil {
			return fmt.Errorf("wsfeed: replay subscribe: %w", err)
		}
	}
	return nil
}

// Authenticate sends the auth command and remembers it for replay across
// reconnects.
func (c *Client) Authenticate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
	c.authSent = true
	return c.sendLocked(map[string]any{"action": "auth", "params": key})
}

// Subscribe sends a subscribe command and records it for replay on
// reconnect.
func (c *Client) Subscribe(params SubscribeParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, params)
	return c.sendLocked(map[string]any{"action": "subscribe", "params": params})
}

// Unsubscribe sends an unsubscribe command; it does not remove the original
// subscription from the replay list (symmetry kept simple: callers that
// unsubscribe permanently should build a fresh Client for a new symbol set).
func (c *Client) Unsubscribe(params SubscribeParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(map[string]any{"action": "unsubscribe", "params": params})
}

// SendMessage writes an arbitrary JSON-able value to the socket.
func (c *Client) SendMessage(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(v)
}

func (c *Client) sendLocked(v any) error {
	if c.conn == nil {
		return fmt.Errorf("wsfeed: not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsfeed: marshal: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// StartReceiveLoop is a no-op placeholder kept for symmetry with
// StopReceiveLoop: the receive loop is already started by Connect.
func (c *Client) StartReceiveLoop() {}

// StopReceiveLoop flips the stop flag; the loop exits at its next wake.
func (c *Client) StopReceiveLoop() {
	c.stopped.Store(true)
	c.doneOnce.Do(func() { close(c.done) })
}

// Disconnect stops the receive loop and closes the underlying connection.
func (c *Client) Disconnect() error {
	c.StopReceiveLoop()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// receiveLoop owns the read side of the connection. On close/error it cleans
// up, waits at least postCloseWait, and reconnects with exponential backoff,
// re-authenticating and re-subscribing via Connect's replay logic.
func (c *Client) receiveLoop() {
	for {
		if c.stopped.Load() {
			return
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			if c.stopped.Load() {
				return
			}
			c.onLog("warn", "wsfeed: read error, reconnecting: "+err.Error())
			c.reconnectWithBackoff()
			return
		}

		c.dispatch(message)
	}
}

func (c *Client) dispatch(message []byte) {
	cbVal := c.callback.Load()
	if cbVal == nil {
		return
	}
	cb := cbVal.(MessageCallback)
	defer func() {
		if r := recover(); r != nil {
			c.onLog("warn", fmt.Sprintf("wsfeed: message callback panicked: %v", r))
		}
	}()
	if err := cb(message); err != nil {
		c.onLog("warn", "wsfeed: message callback error: "+err.Error())
	}
}

func (c *Client) reconnectWithBackoff() {
	delay := minReconnectDelay
	for {
		if c.stopped.Load() {
			return
		}
		time.Sleep(postCloseWait)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		c.mu.Lock()
		err := c.connectLocked(ctx)
		c.mu.Unlock()
		cancel()

		if err == nil {
			return
		}
		c.onLog("warn", "wsfeed: reconnect failed: "+err.Error())

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
