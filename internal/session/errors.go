package session

import "errors"

// ErrEmptySessionID rejects CreateOrGet/ExecuteAsync calls with no id.
var ErrEmptySessionID = errors.New("session: session id cannot be empty")
