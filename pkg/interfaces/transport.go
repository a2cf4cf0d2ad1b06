package interfaces

import (
	"context"

	"agenthub/pkg/types"
)

// Transport wraps one bidirectional, message-framed stream. Implementations
// must serialize concurrent Send calls internally (a single-writer-goroutine
// pattern); Receive is only ever called from one goroutine at a time by the
// connection handler.
type Transport interface {
	// Receive suspends until a full message arrives, or returns ErrClosed
	// once the peer has hung up. Closed is terminal: every subsequent call
	// returns ErrClosed immediately.
	Receive(ctx context.Context) (*types.Message, error)

	// Send serializes and pushes msg atomically. It returns ErrSendFailed
	// (never ErrClosed) when the peer has gone away, so callers can treat
	// "I tried to tell a disconnected peer something" as a normal, non-fatal
	// outcome.
	Send(ctx context.Context, msg *types.Message) error

	// Close releases the underlying connection. Idempotent.
	Close() error
}
