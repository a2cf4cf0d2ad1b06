package interfaces

import "errors"

// Shared sentinel errors referenced across component boundaries.
var (
	// ErrClosed is returned by Transport.Receive once the peer has hung up.
	// Terminal: never clears.
	ErrClosed = errors.New("transport closed")

	// ErrSendFailed is returned by Transport.Send when serialization
	// succeeded but the message could not be handed to the peer: the
	// transport is closed, or its write buffer stayed full past the write
	// timeout.
	ErrSendFailed = errors.New("send failed: peer unreachable")
)
