// Package registry is the authoritative in-memory directory of connected
// clients: an RWMutex-guarded map of clients keyed on client_id, with an
// evict-then-replace pattern on reconnection, plus two map-of-sets session
// indices (orchestrator/device) tracking session bindings per client.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"agenthub/internal/metrics"
	"agenthub/pkg/interfaces"
	"agenthub/pkg/types"
)

// Registry implements interfaces.Registry.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*interfaces.Entry // client_id -> entry

	orchestratorSessions map[string]map[string]struct{} // client_id -> session_id set
	deviceSessions       map[string]map[string]struct{} // device_id -> session_id set

	log *zap.SugaredLogger
}

// New constructs an empty registry.
func New(log *zap.SugaredLogger) *Registry {
	return &Registry{
		clients:              make(map[string]*interfaces.Entry),
		orchestratorSessions: make(map[string]map[string]struct{}),
		deviceSessions:       make(map[string]map[string]struct{}),
		log:                  log,
	}
}

// Add inserts client under client.ID, evicting and returning whatever was
// there before under the same id. The caller owns cleaning up the evicted
// entry's sessions and closing its transport — Add only swaps the
// directory record, atomically, so no lookup can observe a half-registered
// state.
func (r *Registry) Add(client *types.Client, transport interfaces.Transport) (*interfaces.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, hadPrev := r.clients[client.ID]
	r.clients[client.ID] = &interfaces.Entry{Client: client, Transport: transport}
	r.reportConnectedLocked()
	return prev, hadPrev
}

func (r *Registry) Get(clientID string) (*interfaces.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[clientID]
	return e, ok
}

// GetDevice returns an entry iff present AND its kind is Device — the only
// existence check permitted before dispatching a task.
func (r *Registry) GetDevice(clientID string) (*interfaces.Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[clientID]
	if !ok || e.Client.Kind != types.ClientKindDevice {
		return nil, false
	}
	return e, true
}

func (r *Registry) Remove(clientID string) (*interfaces.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[clientID]
	if !ok {
		return nil, false
	}
	delete(r.clients, clientID)
	r.reportConnectedLocked()
	return e, true
}

// reportConnectedLocked refreshes the connected-clients gauge by kind.
// Callers must already hold r.mu for writing.
func (r *Registry) reportConnectedLocked() {
	devices, orchestrators := 0, 0
	for _, e := range r.clients {
		if e.Client.Kind == types.ClientKindDevice {
			devices++
		} else {
			orchestrators++
		}
	}
	metrics.SetConnectedClients(string(types.ClientKindDevice), devices)
	metrics.SetConnectedClients(string(types.ClientKindConstellation), orchestrators)
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) AddOrchestratorSession(clientID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orchestratorSessions[clientID] == nil {
		r.orchestratorSessions[clientID] = make(map[string]struct{})
	}
	r.orchestratorSessions[clientID][sessionID] = struct{}{}
}

func (r *Registry) AddDeviceSession(deviceID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deviceSessions[deviceID] == nil {
		r.deviceSessions[deviceID] = make(map[string]struct{})
	}
	r.deviceSessions[deviceID][sessionID] = struct{}{}
}

// DrainOrchestratorSessions removes and returns every session id bound to
// clientID in one atomic step, so no session can be added under clientID
// between reading the set and clearing it.
func (r *Registry) DrainOrchestratorSessions(clientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.orchestratorSessions[clientID]
	delete(r.orchestratorSessions, clientID)
	return keys(set)
}

func (r *Registry) DrainDeviceSessions(deviceID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.deviceSessions[deviceID]
	delete(r.deviceSessions, deviceID)
	return keys(set)
}

func (r *Registry) RemoveOrchestratorSession(clientID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.orchestratorSessions[clientID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.orchestratorSessions, clientID)
		}
	}
}

func (r *Registry) RemoveDeviceSession(deviceID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.deviceSessions[deviceID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.deviceSessions, deviceID)
		}
	}
}

// DeviceSystemInfo returns a snapshot copy of the device's cached
// system_info so callers never read the map while it could be concurrently
// replaced.
func (r *Registry) DeviceSystemInfo(deviceID string) (map[string]interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[deviceID]
	if !ok || e.Client.Kind != types.ClientKindDevice || e.Client.SystemInfo == nil {
		return nil, false
	}
	cp := make(map[string]interface{}, len(e.Client.SystemInfo))
	for k, v := range e.Client.SystemInfo {
		cp[k] = v
	}
	return cp, true
}

// FindOrchestratorForSession scans orchestratorSessions for sessionID's
// owner. O(n) in connected orchestrators, acceptable since it only runs
// once per device-reported TASK_END, not on any hot path.
func (r *Registry) FindOrchestratorForSession(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for clientID, set := range r.orchestratorSessions {
		if _, ok := set[sessionID]; ok {
			return clientID, true
		}
	}
	return "", false
}

func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices, orchestrators := 0, 0
	for _, e := range r.clients {
		if e.Client.Kind == types.ClientKindDevice {
			devices++
		} else {
			orchestrators++
		}
	}
	sessions := 0
	for _, set := range r.orchestratorSessions {
		sessions += len(set)
	}

	return map[string]int{
		"total_connections": len(r.clients),
		"devices":           devices,
		"orchestrators":     orchestrators,
		"active_sessions":   sessions,
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
