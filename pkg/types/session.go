package types

import "time"

// SessionState is the lifecycle state of a task execution context.
type SessionState string

const (
	SessionCreated   SessionState = "created"
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
	SessionCancelled SessionState = "cancelled"
)

// Terminal reports whether the state never transitions again.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionCancelled:
		return true
	default:
		return false
	}
}

// CancelReason explains why a session's background activity was cancelled.
type CancelReason string

const (
	CancelDeviceDisconnected       CancelReason = "device_disconnected"
	CancelOrchestratorDisconnected CancelReason = "orchestrator_disconnected"
	CancelManual                   CancelReason = "manual_cancel"
	CancelTimeout                  CancelReason = "timeout"
	// CancelDeviceReported covers an advisory TASK_END originating from the
	// device itself.
	CancelDeviceReported CancelReason = "device_reported"
)

// Session is a server-side task execution context.
type Session struct {
	ID           string                 `json:"id"`
	TaskName     string                 `json:"task_name"`
	RequestText  string                 `json:"request_text"`
	Platform     string                 `json:"platform"`
	State        SessionState           `json:"state"`
	StartedAt    time.Time              `json:"started_at"`
	EndedAt      *time.Time             `json:"ended_at,omitempty"`
	Results      map[string]interface{} `json:"results,omitempty"`
	CancelReason *CancelReason          `json:"cancel_reason,omitempty"`
}

// Result is what the result cache stores per session, plus the task_name
// index key used by GetResultByTask.
type Result struct {
	SessionID string                 `json:"session_id"`
	TaskName  string                 `json:"task_name"`
	Status    string                 `json:"status"`
	Result    map[string]interface{} `json:"result,omitempty"`
}
