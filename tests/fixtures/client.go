// Package fixtures provides a real WebSocket test client: dial with
// gorilla/websocket, run a background readLoop into a buffered channel, and
// expose blocking helpers for scenario tests.
package fixtures

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"agenthub/pkg/types"
)

// Client is one simulated device or constellation connection.
type Client struct {
	ServerURL string

	conn     *websocket.Conn
	messages chan *types.Message

	mu     sync.Mutex
	closed bool
}

// NewClient constructs a Client pointed at serverURL (http://... or
// ws://...); Connect dials it.
func NewClient(serverURL string) *Client {
	return &Client{
		ServerURL: serverURL,
		messages:  make(chan *types.Message, 100),
	}
}

// Connect dials the /ws endpoint and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	c.conn = conn
	go c.readLoop()
	return nil
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			close(c.messages)
			return
		}
		msg, err := types.Decode(data)
		if err != nil {
			continue
		}
		c.messages <- msg
	}
}

// Send writes one message synchronously.
func (c *Client) Send(msg *types.Message) error {
	data, err := types.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Register sends a REGISTER and waits for REGISTER_CONFIRM or
// REGISTER_ERROR, whichever arrives first.
func (c *Client) Register(clientID, clientType, platform, targetID string) (*types.Message, error) {
	if err := c.Send(&types.Message{
		Type:       types.TypeRegister,
		ClientID:   clientID,
		ClientType: clientType,
		Platform:   platform,
		TargetID:   targetID,
	}); err != nil {
		return nil, err
	}
	return c.Await(2 * time.Second)
}

// Await blocks for the next inbound message, or times out.
func (c *Client) Await(timeout time.Duration) (*types.Message, error) {
	select {
	case msg, ok := <-c.messages:
		if !ok {
			return nil, fmt.Errorf("connection closed")
		}
		return msg, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("timed out waiting for message")
	}
}

// AwaitType blocks until a message of typ arrives, discarding others, or
// times out.
func (c *Client) AwaitType(typ string, timeout time.Duration) (*types.Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("timed out waiting for %s", typ)
		}
		msg, err := c.Await(remaining)
		if err != nil {
			return nil, err
		}
		if msg.Type == typ {
			return msg, nil
		}
	}
}

// Close drops the underlying connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
