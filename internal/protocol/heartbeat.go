package protocol

import (
	"time"

	"agenthub/pkg/types"
)

// NewHeartbeatAck replies to a HEARTBEAT, resetting the peer's view of
// liveness just as it resets the connection handler's own liveness timer.
func NewHeartbeatAck() *types.Message {
	return &types.Message{Type: types.TypeHeartbeatAck, Timestamp: types.NowMillis(time.Now())}
}
