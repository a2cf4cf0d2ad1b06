package interfaces

import (
	"context"

	"agenthub/pkg/types"
)

// OnResult is invoked exactly once per background activity, synthesizing
// the appropriate TASK_END message. The manager guarantees at-most-once
// delivery even under concurrent cancellation.
type OnResult func(sessionID string, msg *types.Message)

// SessionManager creates platform-specific session objects on demand, runs
// them as cancellable background activities, and caches results for later
// retrieval.
type SessionManager interface {
	CreateOrGet(sessionID, taskName, requestText, platform string) (*types.Session, error)

	// ExecuteAsync schedules a background activity and returns immediately.
	// transport is where COMMAND messages for this session are sent.
	ExecuteAsync(ctx context.Context, sessionID, taskName, requestText, platform string, transport Transport, onResult OnResult) error

	// Cancel cancels the background activity cooperatively, per a
	// reason-keyed on_result policy.
	Cancel(sessionID string, reason types.CancelReason)

	GetResult(sessionID string) (*types.Result, bool)
	GetResultByTask(taskName string) (*types.Result, bool)
	Remove(sessionID string)

	// Dispatcher returns the CommandDispatcher for a running session, so the
	// connection handler can route an inbound COMMAND_RESULTS to it.
	Dispatcher(sessionID string) (CommandDispatcher, bool)
}
