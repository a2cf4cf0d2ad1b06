package types

import "encoding/json"

// Validate checks the required-by-type fields for each wire message type.
// Unknown types are rejected so the connection handler can surface them as
// protocol-violation ERROR replies rather than silently dropping them.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeRegister:
		if m.ClientID == "" {
			return ErrEmptyClientID
		}
		if m.ClientType != string(ClientKindDevice) && m.ClientType != string(ClientKindConstellation) {
			return ErrInvalidClientType
		}
		if m.Platform == "" {
			return ErrMissingPlatform
		}
	case TypeRegisterConfirm:
		if m.ClientID == "" {
			return ErrEmptyClientID
		}
	case TypeRegisterError, TypeError:
		// Detail may legitimately be empty for ERROR but not recommended;
		// nothing to reject here.
	case TypeHeartbeat, TypeHeartbeatAck:
		// timestamp is optional
	case TypeTask:
		if m.Request == "" {
			return ErrMissingRequest
		}
	case TypeTaskAssignment:
		if m.SessionID == "" {
			return ErrMissingSessionID
		}
		if m.ResponseID == "" {
			return ErrMissingResponseID
		}
		if m.Request == "" {
			return ErrMissingRequest
		}
	case TypeAck:
		if m.SessionID == "" {
			return ErrMissingSessionID
		}
	case TypeCommand:
		if m.SessionID == "" {
			return ErrMissingSessionID
		}
		if m.ResponseID == "" {
			return ErrMissingResponseID
		}
		if m.Payload == nil {
			return ErrMissingPayload
		}
	case TypeCommandResults:
		if m.SessionID == "" {
			return ErrMissingSessionID
		}
		if m.PrevResponseID == "" {
			return ErrMissingResponseID
		}
	case TypeTaskEnd:
		if m.SessionID == "" {
			return ErrMissingSessionID
		}
		switch m.Status {
		case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		default:
			return ErrInvalidTaskStatus
		}
	case TypeDeviceInfoRequest:
		if m.TargetID == "" {
			return ErrMissingTargetID
		}
		if m.RequestID == "" {
			return ErrMissingRequestID
		}
	case TypeDeviceInfoResponse:
		if m.RequestID == "" {
			return ErrMissingRequestID
		}
	default:
		return ErrUnknownMessageType
	}
	return nil
}

// IsValidMessageType reports whether typ is one of the fourteen wire types.
func IsValidMessageType(typ string) bool {
	switch typ {
	case TypeRegister, TypeRegisterConfirm, TypeRegisterError,
		TypeHeartbeat, TypeHeartbeatAck,
		TypeDeviceInfoRequest, TypeDeviceInfoResponse,
		TypeTask, TypeTaskAssignment, TypeAck, TypeCommand, TypeCommandResults, TypeTaskEnd,
		TypeError:
		return true
	default:
		return false
	}
}

// Decode parses a single JSON-framed message off the wire.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode serializes a message for the wire.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}
