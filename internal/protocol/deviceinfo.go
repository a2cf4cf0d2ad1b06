package protocol

import "agenthub/pkg/types"

// NewDeviceInfoRequest asks targetID for its current system_info,
// correlated by requestID.
func NewDeviceInfoRequest(targetID, requestID string) *types.Message {
	return &types.Message{Type: types.TypeDeviceInfoRequest, TargetID: targetID, RequestID: requestID}
}

// NewDeviceInfoResponse answers a DEVICE_INFO_REQUEST. systemInfo may be an
// empty map (never nil) when the target is unknown or has not reported
// capabilities yet.
func NewDeviceInfoResponse(requestID string, systemInfo map[string]interface{}) *types.Message {
	if systemInfo == nil {
		systemInfo = map[string]interface{}{}
	}
	return &types.Message{Type: types.TypeDeviceInfoResponse, RequestID: requestID, SystemInfo: systemInfo}
}
