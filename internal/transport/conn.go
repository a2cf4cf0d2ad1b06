// Package transport implements interfaces.Transport over a WebSocket
// connection: a single writer goroutine draining a buffered write channel,
// speaking pkg/types.Message.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"agenthub/pkg/interfaces"
	"agenthub/pkg/types"
)

// Conn adapts a *websocket.Conn to interfaces.Transport. Receive is not
// safe for concurrent use (gorilla/websocket allows only one reader), but
// the connection handler only ever calls it from its own read loop, so
// this matches actual usage. Send is safe to call concurrently with
// Receive and with itself.
type Conn struct {
	ws           *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// New wraps ws, starting the write-serializing goroutine immediately.
// bufferSize is the write channel's capacity (default: 100); writeTimeout
// bounds how long a single WriteMessage call may block.
func New(ws *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:           ws,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
	}()

	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Receive blocks until a message arrives, the peer closes, or ctx is
// cancelled. A malformed frame is returned as a decode error rather than
// silently dropped — the caller (connection handler) decides how to
// respond.
func (c *Conn) Receive(ctx context.Context) (*types.Message, error) {
	if c.isClosed() {
		return nil, interfaces.ErrClosed
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		_, data, err := c.ws.ReadMessage()
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, interfaces.ErrClosed
		}
		msg, err := types.Decode(r.data)
		if err != nil {
			return nil, err
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, interfaces.ErrClosed
	}
}

// Send enqueues msg for delivery by the write goroutine. Returns
// ErrSendFailed if the connection is closed, or if the write channel stays
// full (peer not draining fast enough) for writeTimeout, rather than
// blocking indefinitely.
func (c *Conn) Send(ctx context.Context, msg *types.Message) error {
	if c.isClosed() {
		return interfaces.ErrSendFailed
	}

	data, err := types.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return interfaces.ErrSendFailed
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return interfaces.ErrSendFailed
	}
}

// Close is idempotent: the first call cancels the write loop and closes
// the underlying socket; later calls are no-ops.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
