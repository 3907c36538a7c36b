package mcp

import (
	"time"

	"github.com/urmzd/peerlobby/pkg/device"
	"github.com/urmzd/peerlobby/pkg/protocol"
)

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status    string `json:"status" jsonschema:"description=Overall health status (healthy or unhealthy)"`
	Transport string `json:"transport" jsonschema:"description=Peer transport connection status"`
	Timestamp string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceInfo `json:"devices" jsonschema:"description=Known peers"`
	Count   int          `json:"count" jsonschema:"description=Number of known peers"`
}

// DeviceInfo represents a peer in tool outputs
type DeviceInfo struct {
	ID       string `json:"id" jsonschema:"description=Transport peer id"`
	ClientID string `json:"client_id,omitempty" jsonschema:"description=Peer's stable client id"`
	Name     string `json:"name" jsonschema:"description=Display name"`
	Role     string `json:"role" jsonschema:"description=display, controller or idle"`
	LastSeen string `json:"last_seen" jsonschema:"description=ISO8601 time of last contact"`
}

// JoinInfoOutput is the output for the get_join_info tool
type JoinInfoOutput struct {
	Lobby    string `json:"lobby" jsonschema:"description=Lobby name"`
	ClientID string `json:"client_id" jsonschema:"description=This device's client id"`
	Name     string `json:"name" jsonschema:"description=This device's display name"`
}

// ActionOutput is the output of tools that only change state.
type ActionOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether the action was applied"`
	Message string `json:"message" jsonschema:"description=Status message"`
}

// SendCommandOutput is the output for the send_command tool
type SendCommandOutput struct {
	Command protocol.Command `json:"command" jsonschema:"description=The stamped command that was sent"`
	Target  string           `json:"target" jsonschema:"description=Peer id or 'all'"`
}

// DeviceToInfo converts a device.Device to DeviceInfo
func DeviceToInfo(d device.Device) DeviceInfo {
	return DeviceInfo{
		ID:       d.ID,
		ClientID: d.ClientID,
		Name:     d.Name,
		Role:     string(d.Role),
		LastSeen: d.LastSeen.UTC().Format(time.RFC3339),
	}
}
