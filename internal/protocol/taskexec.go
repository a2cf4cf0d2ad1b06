package protocol

import "agenthub/pkg/types"

// NewTaskAssignment tells a device to begin a session. prev_response_id is
// always absent (nil) on the first assignment.
func NewTaskAssignment(sessionID, responseID, taskName, request string) *types.Message {
	return &types.Message{
		Type:       types.TypeTaskAssignment,
		SessionID:  sessionID,
		ResponseID: responseID,
		TaskName:   taskName,
		Request:    request,
	}
}

// NewAck confirms a TASK was accepted and a session created for it.
func NewAck(sessionID string) *types.Message {
	return &types.Message{Type: types.TypeAck, SessionID: sessionID}
}

// NewCommand asks the device to execute payload, correlated by a fresh
// responseID minted by the CommandDispatcher before this message is sent.
func NewCommand(sessionID, responseID string, payload map[string]interface{}) *types.Message {
	return &types.Message{Type: types.TypeCommand, SessionID: sessionID, ResponseID: responseID, Payload: payload}
}

// NewTaskEnd reports a session's terminal outcome. status must be one of
// TaskStatusCompleted/TaskStatusFailed/TaskStatusCancelled.
func NewTaskEnd(sessionID, status string, result map[string]interface{}) *types.Message {
	return &types.Message{Type: types.TypeTaskEnd, SessionID: sessionID, Status: status, Result: result}
}
