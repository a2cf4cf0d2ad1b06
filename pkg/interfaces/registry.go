package interfaces

import "agenthub/pkg/types"

// Entry is what the registry hands back on lookup: the directory record
// plus the live transport bound to it.
type Entry struct {
	Client    *types.Client
	Transport Transport
}

// Registry is the authoritative in-memory directory of connections, their
// kinds, and their session bindings. All operations are serializable
// against one another.
type Registry interface {
	// Add inserts client, atomically evicting any prior entry under the
	// same id. The caller must schedule cleanup of the returned evicted
	// entry (cancel its sessions, close its transport) — Add itself never
	// touches the evicted entry's sessions or transport.
	Add(client *types.Client, transport Transport) (evicted *Entry, hadEvicted bool)

	Get(clientID string) (*Entry, bool)

	// GetDevice is the only existence check permitted before dispatching a
	// task: it returns an entry iff present AND Kind == Device.
	GetDevice(clientID string) (*Entry, bool)

	Remove(clientID string) (*Entry, bool)

	List() []string

	AddOrchestratorSession(clientID, sessionID string)
	AddDeviceSession(deviceID, sessionID string)

	// DrainOrchestratorSessions/DrainDeviceSessions remove and return all
	// session ids under clientID atomically, so the caller can cancel them
	// without racing a concurrent Add under the same id.
	DrainOrchestratorSessions(clientID string) []string
	DrainDeviceSessions(deviceID string) []string

	// RemoveOrchestratorSession/RemoveDeviceSession detach a single
	// session id, used when a session terminates on its own rather than
	// via client disconnect.
	RemoveOrchestratorSession(clientID, sessionID string)
	RemoveDeviceSession(deviceID, sessionID string)

	// DeviceSystemInfo returns a snapshot copy of a device's cached
	// system_info, safe to read without holding the registry lock.
	DeviceSystemInfo(deviceID string) (map[string]interface{}, bool)

	// FindOrchestratorForSession returns the client_id whose
	// orchestrator_sessions set currently contains sessionID, if any.
	// Used to forward a device-reported TASK_END to its requester without
	// a back-pointer on Session.
	FindOrchestratorForSession(sessionID string) (string, bool)

	Stats() map[string]int
}
