package protocol

import "agenthub/pkg/types"

// NewError is the catch-all peer-reported failure message, optionally
// scoped to a session.
func NewError(detail, sessionID string) *types.Message {
	m := &types.Message{Type: types.TypeError, Detail: detail}
	if sessionID != "" {
		m.SessionID = sessionID
	}
	return m
}
