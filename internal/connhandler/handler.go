// Package connhandler runs the per-connection state machine: upgrade,
// register, then a sequential inbound loop dispatching REGISTER/HEARTBEAT/
// TASK/TASK_END messages against the registry and session manager. Routing
// is a direct registry lookup per connection, so there is no central
// coordinator goroutine.
package connhandler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agenthub/internal/dispatch"
	"agenthub/internal/protocol"
	"agenthub/internal/ratelimit"
	"agenthub/internal/registry"
	"agenthub/internal/transport"
	"agenthub/pkg/interfaces"
	"agenthub/pkg/types"
)

// messagesPerMinute bounds how fast one registered connection can push
// messages into the Hub before it starts getting rate-limited ERROR
// replies.
const messagesPerMinute = 100

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Device and constellation clients are expected to dial directly,
		// not from a browser context that origin-checking would protect.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler accepts WebSocket connections and runs each one's state machine
// to completion in its own goroutine.
type Handler struct {
	registry   interfaces.Registry
	sessions   interfaces.SessionManager
	dispatcher *dispatch.Dispatcher
	limiter    *ratelimit.Limiter

	registrationTimeout time.Duration
	livenessTimeout     time.Duration
	writeTimeout        time.Duration
	bufferSize          int

	// deviceOverlays is an operator-supplied per-device system_info
	// override, keyed by client_id, applied on top of what REGISTER itself
	// reports.
	deviceOverlays map[string]map[string]interface{}

	log *zap.SugaredLogger
}

// New constructs a Handler. defaultPlatform is passed through to the
// Dispatcher for sessions whose device and request both omit a platform;
// deviceOverlays supplies MergeSystemInfo's overlay argument per device_id.
func New(reg interfaces.Registry, sessions interfaces.SessionManager, registrationTimeout, livenessTimeout, writeTimeout time.Duration, bufferSize int, defaultPlatform string, deviceOverlays map[string]map[string]interface{}, log *zap.SugaredLogger) *Handler {
	return &Handler{
		registry:            reg,
		sessions:            sessions,
		dispatcher:          dispatch.New(reg, sessions, defaultPlatform, log),
		limiter:             ratelimit.New(messagesPerMinute),
		registrationTimeout: registrationTimeout,
		livenessTimeout:     livenessTimeout,
		writeTimeout:        writeTimeout,
		bufferSize:          bufferSize,
		deviceOverlays:      deviceOverlays,
		log:                 log,
	}
}

// SweepRateLimits drops rate-limit windows idle long enough to be stale,
// bounding memory growth from clients that vanished without disconnecting
// cleanly. Intended to be called periodically by the process owning this
// Handler's lifecycle.
func (h *Handler) SweepRateLimits() {
	h.limiter.Sweep()
}

// ServeHTTP upgrades the request to a WebSocket and runs the connection's
// state machine on its own goroutine, returning immediately.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	conn := transport.New(ws, h.bufferSize, h.writeTimeout)
	go h.run(conn)
}

// run drives one connection from AwaitingRegister through End.
func (h *Handler) run(conn interfaces.Transport) {
	client, ok := h.awaitRegister(conn)
	if !ok {
		_ = conn.Close()
		return
	}
	h.registered(client, conn)
}

// awaitRegister is the AwaitingRegister state: accept exactly one inbound
// message, which must be a valid REGISTER.
func (h *Handler) awaitRegister(conn interfaces.Transport) (*types.Client, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), h.registrationTimeout)
	defer cancel()

	msg, err := conn.Receive(ctx)
	if err != nil {
		h.log.Infow("connection closed before registration", "error", err)
		return nil, false
	}

	if msg.Type != types.TypeRegister {
		h.rejectRegistration(conn, "first message must be REGISTER")
		return nil, false
	}
	if err := msg.Validate(); err != nil {
		h.rejectRegistration(conn, err.Error())
		return nil, false
	}

	kind := types.ClientKind(msg.ClientType)
	if kind == types.ClientKindConstellation && msg.TargetID != "" {
		if _, ok := h.registry.GetDevice(msg.TargetID); !ok {
			h.rejectRegistration(conn, "target device not connected")
			return nil, false
		}
	}

	client := &types.Client{
		ID:          msg.ClientID,
		Kind:        kind,
		Platform:    msg.Platform,
		ConnectedAt: time.Now(),
		Metadata:    msg.Metadata,
	}
	if kind == types.ClientKindDevice {
		client.SystemInfo = registry.MergeSystemInfo(msg.Metadata, h.deviceOverlays[client.ID])
	}

	evicted, hadEvicted := h.registry.Add(client, conn)
	if hadEvicted {
		go h.cleanupEvicted(evicted)
	}

	if err := conn.Send(context.Background(), protocol.NewRegisterConfirm(client.ID)); err != nil {
		h.log.Warnw("failed to send REGISTER_CONFIRM", "client_id", client.ID, "error", err)
	}

	h.log.Infow("client registered", "client_id", client.ID, "kind", client.Kind, "evicted_prior", hadEvicted)
	return client, true
}

func (h *Handler) rejectRegistration(conn interfaces.Transport, detail string) {
	_ = conn.Send(context.Background(), protocol.NewRegisterError(detail))
}

// cleanupEvicted handles the prior occupant of a client_id atomically
// replaced by a fresh registration: cancel whatever sessions it held and
// close its transport. The registry entry itself is already gone — Add
// overwrote it — so there is nothing left to remove.
func (h *Handler) cleanupEvicted(evicted *interfaces.Entry) {
	reason := reasonForKind(evicted.Client.Kind)
	sessionIDs := h.registry.DrainOrchestratorSessions(evicted.Client.ID)
	sessionIDs = append(sessionIDs, h.registry.DrainDeviceSessions(evicted.Client.ID)...)
	for _, sid := range sessionIDs {
		h.sessions.Cancel(sid, reason)
	}
	_ = evicted.Transport.Close()
	h.log.Infow("evicted prior connection", "client_id", evicted.Client.ID, "sessions_cancelled", len(sessionIDs))
}

// registered is the Registered state: a single inbound loop dispatching by
// message type, until disconnect or liveness expiry.
func (h *Handler) registered(client *types.Client, conn interfaces.Transport) {
	defer h.disconnectCleanup(client, conn)

	for {
		ctx, cancel := context.WithTimeout(context.Background(), h.livenessTimeout)
		msg, err := conn.Receive(ctx)
		cancel()

		if err != nil {
			if errors.Is(err, interfaces.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// A valid frame that failed to decode: reply ERROR and stay
			// registered rather than tearing down the connection.
			_ = conn.Send(context.Background(), protocol.NewError("malformed message: "+err.Error(), ""))
			continue
		}

		if err := msg.Validate(); err != nil {
			_ = conn.Send(context.Background(), protocol.NewError(err.Error(), msg.SessionID))
			continue
		}

		if !h.limiter.Allow(client.ID) {
			_ = conn.Send(context.Background(), protocol.NewError("rate limit exceeded", msg.SessionID))
			continue
		}

		h.dispatch(client, conn, msg)
	}
}

func (h *Handler) dispatch(client *types.Client, conn interfaces.Transport, msg *types.Message) {
	switch msg.Type {
	case types.TypeHeartbeat:
		_ = conn.Send(context.Background(), protocol.NewHeartbeatAck())

	case types.TypeTask:
		h.handleTask(client, conn, msg)

	case types.TypeCommandResults:
		h.handleCommandResults(client, msg)

	case types.TypeDeviceInfoRequest:
		h.handleDeviceInfoRequest(conn, msg)

	case types.TypeDeviceInfoResponse:
		// A device answering its own earlier DEVICE_INFO_REQUEST refreshes
		// nothing server-side beyond what the request already served from
		// cache; nothing to do but log.
		h.log.Infow("device info response received", "client_id", client.ID, "request_id", msg.RequestID)

	case types.TypeTaskEnd:
		h.handleDeviceReportedTaskEnd(client, msg)

	case types.TypeError:
		h.log.Infow("peer reported error", "client_id", client.ID, "detail", msg.Detail)

	case types.TypeRegister:
		_ = conn.Send(context.Background(), protocol.NewError("already registered", ""))

	default:
		_ = conn.Send(context.Background(), protocol.NewError("unsupported message type: "+msg.Type, ""))
	}
}

// handleTask covers both dispatch paths: a device's own TASK runs locally
// (no TASK_ASSIGNMENT — the device already knows what it asked for); a
// constellation's TASK with target_id is verified against the registry and
// handed to the named device.
func (h *Handler) handleTask(client *types.Client, conn interfaces.Transport, msg *types.Message) {
	req := dispatch.Request{
		SessionID:   msg.SessionID,
		TaskName:    msg.TaskName,
		RequestText: msg.Request,
		Platform:    client.Platform,
	}

	if msg.TargetID == "" {
		req.DeviceID = client.ID
		req.AssignTask = false
	} else {
		if _, ok := h.registry.GetDevice(msg.TargetID); !ok {
			_ = conn.Send(context.Background(), protocol.NewError("target device not connected", msg.SessionID))
			return
		}
		req.DeviceID = msg.TargetID
		req.OrchestratorID = client.ID
		req.AssignTask = true
	}

	outcome, err := h.dispatcher.Dispatch(req)
	if err != nil {
		_ = conn.Send(context.Background(), protocol.NewError(err.Error(), msg.SessionID))
		return
	}

	_ = conn.Send(context.Background(), protocol.NewAck(outcome.SessionID))
}

func (h *Handler) handleCommandResults(client *types.Client, msg *types.Message) {
	disp, ok := h.sessions.Dispatcher(msg.SessionID)
	if !ok {
		h.log.Infow("COMMAND_RESULTS for unknown or finished session", "client_id", client.ID, "session_id", msg.SessionID)
		return
	}
	disp.SetResult(msg.PrevResponseID, interfaces.CommandResult{Payload: msg.Payload})
}

func (h *Handler) handleDeviceInfoRequest(conn interfaces.Transport, msg *types.Message) {
	info, _ := h.registry.DeviceSystemInfo(msg.TargetID)
	_ = conn.Send(context.Background(), protocol.NewDeviceInfoResponse(msg.RequestID, info))
}

// handleDeviceReportedTaskEnd treats a TASK_END arriving directly from a
// device (rather than synthesized by the session manager) as advisory:
// cancel the session with a dedicated reason and forward the message to
// any orchestrator still bound to it.
func (h *Handler) handleDeviceReportedTaskEnd(client *types.Client, msg *types.Message) {
	h.sessions.Cancel(msg.SessionID, types.CancelDeviceReported)
	h.registry.RemoveDeviceSession(client.ID, msg.SessionID)

	orchestratorID, ok := h.registry.FindOrchestratorForSession(msg.SessionID)
	if !ok {
		return
	}
	h.registry.RemoveOrchestratorSession(orchestratorID, msg.SessionID)
	if entry, ok := h.registry.Get(orchestratorID); ok {
		if err := entry.Transport.Send(context.Background(), msg); err != nil {
			h.log.Warnw("failed to forward device-reported TASK_END", "session_id", msg.SessionID, "error", err)
		}
	}
}

// disconnectCleanup drains both session-index tables before removing the
// client so no session can be added under this id in the window, then
// cancels every drained session and closes the transport.
func (h *Handler) disconnectCleanup(client *types.Client, conn interfaces.Transport) {
	if entry, ok := h.registry.Get(client.ID); ok && entry.Transport != conn {
		// A newer registration evicted this connection: cleanupEvicted has
		// already cancelled its sessions, and the id's registry entry and
		// session indices now belong to the new connection.
		_ = conn.Close()
		h.log.Infow("evicted connection closed", "client_id", client.ID)
		return
	}

	reason := reasonForKind(client.Kind)
	sessionIDs := h.registry.DrainOrchestratorSessions(client.ID)
	sessionIDs = append(sessionIDs, h.registry.DrainDeviceSessions(client.ID)...)

	for _, sid := range sessionIDs {
		h.sessions.Cancel(sid, reason)
	}

	h.registry.Remove(client.ID)
	h.limiter.Forget(client.ID)
	_ = conn.Close()

	h.log.Infow("client disconnected", "client_id", client.ID, "sessions_cancelled", len(sessionIDs))
}

func reasonForKind(kind types.ClientKind) types.CancelReason {
	if kind == types.ClientKindDevice {
		return types.CancelDeviceDisconnected
	}
	return types.CancelOrchestratorDisconnected
}
