// Package dispatch binds one task request to a device connection and
// starts its session. It is the one code path shared by the connection
// handler's TASK messages and the HTTP dispatch surface's POST
// /api/dispatch, so "create a session, tell the device to run it, wire up
// completion delivery" is written once.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agenthub/internal/protocol"
	"agenthub/pkg/agentloop"
	"agenthub/pkg/interfaces"
	"agenthub/pkg/types"
)

// ErrDeviceNotConnected: get_device is the only existence check permitted
// before a task dispatch.
var ErrDeviceNotConnected = errors.New("dispatch: device not connected")

// Dispatcher wires the registry and session manager together.
type Dispatcher struct {
	registry interfaces.Registry
	sessions interfaces.SessionManager
	log      *zap.SugaredLogger

	// defaultPlatform is used only when neither the device's own registered
	// platform nor Request.Platform names one.
	defaultPlatform string
}

// New constructs a Dispatcher. defaultPlatform is the last-resort fallback
// used when a device registered with no platform and the request supplies
// none either.
func New(reg interfaces.Registry, sessions interfaces.SessionManager, defaultPlatform string, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{registry: reg, sessions: sessions, defaultPlatform: defaultPlatform, log: log}
}

// Request describes one task to bind to a device.
type Request struct {
	SessionID   string // empty: a fresh id is minted
	TaskName    string // empty: defaults to the session id
	RequestText string
	Platform    string // used only if the device entry lacks one

	DeviceID string

	// OrchestratorID is set when a constellation dispatched this task to
	// DeviceID; empty for a device's own TASK or an HTTP-originated
	// dispatch. When set, the terminating TASK_END is also delivered here.
	OrchestratorID string

	// AssignTask sends TASK_ASSIGNMENT to the device before execution
	// starts — true for every path except a device's own self-initiated
	// TASK, where the device already knows what it asked for.
	AssignTask bool
}

// Outcome is what the caller needs to answer its own protocol (ACK,
// HTTP response body, ...).
type Outcome struct {
	SessionID string
	TaskName  string
}

// Dispatch resolves DeviceID to a live connection, optionally sends
// TASK_ASSIGNMENT, records the session index, and starts the session's
// background activity.
func (d *Dispatcher) Dispatch(req Request) (Outcome, error) {
	entry, ok := d.registry.GetDevice(req.DeviceID)
	if !ok {
		return Outcome{}, ErrDeviceNotConnected
	}

	platform := entry.Client.Platform
	if platform == "" {
		platform = req.Platform
	}
	if platform == "" {
		platform = d.defaultPlatform
	}
	if _, err := agentloop.New(platform); err != nil {
		return Outcome{}, fmt.Errorf("dispatch: device %s: %w", req.DeviceID, err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	taskName := req.TaskName
	if taskName == "" {
		taskName = sessionID
	}

	if req.AssignTask {
		responseID := uuid.New().String()
		assignment := protocol.NewTaskAssignment(sessionID, responseID, taskName, req.RequestText)
		if err := entry.Transport.Send(context.Background(), assignment); err != nil {
			return Outcome{}, err
		}
	}

	if req.OrchestratorID != "" {
		d.registry.AddOrchestratorSession(req.OrchestratorID, sessionID)
	}
	d.registry.AddDeviceSession(req.DeviceID, sessionID)

	onResult := d.completionCallback(req.DeviceID, req.OrchestratorID)
	if err := d.sessions.ExecuteAsync(context.Background(), sessionID, taskName, req.RequestText, platform, entry.Transport, onResult); err != nil {
		return Outcome{}, err
	}

	return Outcome{SessionID: sessionID, TaskName: taskName}, nil
}

// completionCallback builds the on_result closure: it fires exactly once,
// always drops the session from both index tables now that it has
// terminated on its own rather than via a disconnect (disconnect cleanup
// drains these tables itself), and — unless the manager passed a nil msg,
// meaning some other path already delivered or is intentionally skipping
// this session's TASK_END — delivers it to the device and (if present) the
// orchestrator that requested the task.
func (d *Dispatcher) completionCallback(deviceID, orchestratorID string) interfaces.OnResult {
	return func(sessionID string, msg *types.Message) {
		d.registry.RemoveDeviceSession(deviceID, sessionID)
		if orchestratorID != "" {
			d.registry.RemoveOrchestratorSession(orchestratorID, sessionID)
		}

		if msg == nil {
			return
		}

		if dev, ok := d.registry.GetDevice(deviceID); ok {
			if err := dev.Transport.Send(context.Background(), msg); err != nil {
				d.log.Warnw("failed to deliver TASK_END to device", "session_id", sessionID, "device_id", deviceID, "error", err)
			}
		}
		if orchestratorID != "" {
			if orc, ok := d.registry.Get(orchestratorID); ok {
				if err := orc.Transport.Send(context.Background(), msg); err != nil {
					d.log.Warnw("failed to deliver TASK_END to orchestrator", "session_id", sessionID, "orchestrator_id", orchestratorID, "error", err)
				}
			}
		}
	}
}
