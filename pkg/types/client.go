package types

import "time"

// Client is a connected peer: a device that executes tasks locally, or a
// constellation that orchestrates tasks across devices.
type Client struct {
	ID          string                 `json:"id"`
	Kind        ClientKind             `json:"kind"`
	Platform    string                 `json:"platform"`
	ConnectedAt time.Time              `json:"connected_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	SystemInfo  map[string]interface{} `json:"system_info,omitempty"`
}

// IsDevice reports whether this client can have tasks dispatched to it.
func (c *Client) IsDevice() bool {
	return c != nil && c.Kind == ClientKindDevice
}
