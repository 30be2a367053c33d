package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Design-Arena-Gens/agentic-4bf6c79a/utils/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	requestWait    = 30 * time.Second
	maxMessageSize = 2 << 20
	maxCloseReason = 123
)

// Client wraps one chat connection. Text frames flow out through a single
// writer goroutine; any inbound frame or read failure cancels the request.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	closed   bool
	finished bool
	running  bool
}

func NewClient(parent context.Context, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(parent)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ReadRequest reads the single request frame that opens a conversation turn.
func (c *Client) ReadRequest(v any) error {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(requestWait))
	return c.conn.ReadJSON(v)
}

func (c *Client) Run() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	c.conn.SetPongHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.ping()
	go c.readPump()
	go c.writePump()
}

// Context is cancelled when the peer aborts, disconnects or the client closes.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// SendText queues one text frame, blocking while the queue is full.
func (c *Client) SendText(message []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.finished {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// Finish flushes queued frames and then sends a close frame with code and reason.
func (c *Client) Finish(code int, reason string) {
	c.mu.Lock()
	if c.closed || c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	running := c.running
	close(c.send)
	c.mu.Unlock()

	if running {
		select {
		case <-c.done:
		case <-time.After(writeWait):
		}
	}

	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		log.WithCtx(c.ctx).Debug("sending close frame", zap.Error(err))
	}
}

// Close cancels the request and drops the connection.
func (c *Client) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

func (c *Client) ping() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) readPump() {
	defer c.cancel()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithCtx(c.ctx).Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		// The protocol has no inbound messages after the request; any frame
		// is an abort.
		log.WithCtx(c.ctx).Info("client aborted the stream", zap.Int("bytes", len(message)))
		c.cancel()
	}
}

func (c *Client) writePump() {
	defer close(c.done)

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Warn("Failed to write message", zap.Error(err))
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
