// Package session implements the Hub's session manager: an RWMutex-guarded
// map of background activities, uuid-based ids, and one log line per
// lifecycle event. Every ExecuteAsync call starts a goroutine running an
// agentloop.AgentLoop to completion, cancellable cooperatively via
// context.Context.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"agenthub/internal/metrics"
	"agenthub/internal/protocol"
	"agenthub/pkg/agentloop"
	"agenthub/pkg/interfaces"
	"agenthub/pkg/types"
)

// activity is the live state for one session's background goroutine.
// session.State after Running is mutated only by this goroutine or by the
// cancel path; reason is the exception — it is written by Cancel and read
// by the goroutine, both under Manager.mu, giving a happens-before edge
// through the mutex.
type activity struct {
	session    *types.Session
	dispatcher *dispatcher
	cancelFn   context.CancelFunc
	reason     types.CancelReason
}

// Manager implements interfaces.SessionManager.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*types.Session // all sessions, any state, until Remove
	active    map[string]*activity      // only while Created/Running
	results   map[string]*types.Result
	taskIndex map[string]string // task_name -> session_id

	// defaultTimeout bounds every session's background activity; 0 means no
	// bound beyond the caller's own ctx/Cancel.
	defaultTimeout time.Duration

	log *zap.SugaredLogger
}

// NewManager constructs an empty session manager. defaultTimeout is applied
// to every session started via ExecuteAsync; 0 disables it.
func NewManager(log *zap.SugaredLogger, defaultTimeout time.Duration) *Manager {
	return &Manager{
		sessions:       make(map[string]*types.Session),
		active:         make(map[string]*activity),
		results:        make(map[string]*types.Result),
		taskIndex:      make(map[string]string),
		defaultTimeout: defaultTimeout,
		log:            log,
	}
}

// CreateOrGet is idempotent on sessionID: a second call with the same id
// returns the session already tracked, ignoring the other arguments.
func (m *Manager) CreateOrGet(sessionID, taskName, requestText, platform string) (*types.Session, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		return sess, nil
	}

	if taskName == "" {
		taskName = sessionID
	}
	sess := &types.Session{
		ID:          sessionID,
		TaskName:    taskName,
		RequestText: requestText,
		Platform:    platform,
		State:       types.SessionCreated,
		StartedAt:   time.Now(),
	}
	m.sessions[sessionID] = sess
	return sess, nil
}

// ExecuteAsync schedules the session's background activity and returns
// immediately. onResult fires exactly once, when the activity terminates.
func (m *Manager) ExecuteAsync(ctx context.Context, sessionID, taskName, requestText, platform string, transport interfaces.Transport, onResult interfaces.OnResult) error {
	sess, err := m.CreateOrGet(sessionID, taskName, requestText, platform)
	if err != nil {
		return err
	}

	loop, err := agentloop.New(platform)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}

	base := context.Background()
	if m.defaultTimeout > 0 {
		base, _ = context.WithTimeout(base, m.defaultTimeout)
	}
	runCtx, cancel := context.WithCancel(base)
	act := &activity{
		session:    sess,
		dispatcher: newDispatcher(sessionID, transport),
		cancelFn:   cancel,
	}

	sess.State = types.SessionRunning

	m.mu.Lock()
	m.active[sessionID] = act
	m.mu.Unlock()

	m.log.Infow("session started", "session_id", sessionID, "task_name", sess.TaskName, "platform", platform)
	metrics.RecordSessionStart()

	go m.run(runCtx, act, loop, onResult)
	return nil
}

func (m *Manager) run(ctx context.Context, act *activity, loop agentloop.AgentLoop, onResult interfaces.OnResult) {
	defer act.cancelFn()
	outcome, err := loop.Run(ctx, act.session.ID, act.session.RequestText, act.dispatcher)

	m.mu.Lock()
	reason := act.reason
	delete(m.active, act.session.ID)
	m.mu.Unlock()

	now := time.Now()
	act.session.EndedAt = &now

	var msg *types.Message
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		act.session.State = types.SessionCancelled
		act.session.CancelReason = &reason
		result := map[string]interface{}{"reason": string(reason)}
		act.session.Results = result
		m.storeResult(act.session.ID, act.session.TaskName, types.TaskStatusFailed, result)

		m.log.Infow("session cancelled", "session_id", act.session.ID, "reason", reason)
		metrics.RecordSessionEnd(string(types.SessionCancelled))

		// OrchestratorDisconnected: the originator is gone and has no live
		// transport to receive a TASK_END on anyway. DeviceReported: the
		// device already sent its own TASK_END and the handler forwarded it;
		// synthesizing a second one here would deliver a contradictory status
		// behind the device's back. Both still reach onResult below with a
		// nil msg, so index cleanup still runs.
		switch reason {
		case types.CancelOrchestratorDisconnected, types.CancelDeviceReported:
			msg = nil
		default:
			msg = protocol.NewTaskEnd(act.session.ID, types.TaskStatusFailed, result)
		}

	case err != nil:
		act.session.State = types.SessionFailed
		result := map[string]interface{}{"error": err.Error()}
		act.session.Results = result
		m.storeResult(act.session.ID, act.session.TaskName, types.TaskStatusFailed, result)
		m.log.Warnw("session failed", "session_id", act.session.ID, "error", err)
		metrics.RecordSessionEnd(string(types.SessionFailed))
		msg = protocol.NewTaskEnd(act.session.ID, types.TaskStatusFailed, result)

	default:
		act.session.State = types.SessionCompleted
		act.session.Results = outcome.Result
		m.storeResult(act.session.ID, act.session.TaskName, types.TaskStatusCompleted, outcome.Result)
		m.log.Infow("session completed", "session_id", act.session.ID)
		metrics.RecordSessionEnd(string(types.SessionCompleted))
		msg = protocol.NewTaskEnd(act.session.ID, types.TaskStatusCompleted, outcome.Result)
	}

	onResult(act.session.ID, msg)
}

// Cancel signals the background activity cooperatively; it observes
// cancellation at its next suspension point (AwaitResult/Dispatch). A
// no-op if sessionID has already terminated or does not exist.
func (m *Manager) Cancel(sessionID string, reason types.CancelReason) {
	m.mu.Lock()
	act, ok := m.active[sessionID]
	if ok {
		act.reason = reason
	}
	m.mu.Unlock()

	if ok {
		act.cancelFn()
	}
}

func (m *Manager) storeResult(sessionID, taskName, status string, result map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[sessionID] = &types.Result{SessionID: sessionID, TaskName: taskName, Status: status, Result: result}
	m.taskIndex[taskName] = sessionID
}

func (m *Manager) GetResult(sessionID string) (*types.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[sessionID]
	return r, ok
}

func (m *Manager) GetResultByTask(taskName string) (*types.Result, bool) {
	m.mu.RLock()
	sessionID, ok := m.taskIndex[taskName]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.GetResult(sessionID)
}

// Remove drops sessionID from every internal table, including its cached
// result. Nothing in this repo calls it automatically; it exists for
// callers — an operator endpoint, a future TTL sweep — that want it.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	delete(m.active, sessionID)
	if r, ok := m.results[sessionID]; ok {
		delete(m.taskIndex, r.TaskName)
	}
	delete(m.results, sessionID)
}

// Dispatcher returns the CommandDispatcher for a running session, so the
// connection handler can route an inbound COMMAND_RESULTS to it.
func (m *Manager) Dispatcher(sessionID string) (interfaces.CommandDispatcher, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	act, ok := m.active[sessionID]
	if !ok {
		return nil, false
	}
	return act.dispatcher, true
}
