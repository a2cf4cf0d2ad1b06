package types

import "errors"

// Wire-level validation errors, surfaced to peers as ERROR(detail=...).
var (
	ErrEmptyClientID      = errors.New("client_id must not be empty")
	ErrInvalidClientType  = errors.New("client_type must be 'device' or 'constellation'")
	ErrMissingPlatform    = errors.New("platform is required")
	ErrMissingSessionID   = errors.New("session_id is required")
	ErrMissingResponseID  = errors.New("response_id is required")
	ErrMissingRequest     = errors.New("request is required")
	ErrMissingTargetID    = errors.New("target_id is required")
	ErrMissingRequestID   = errors.New("request_id is required")
	ErrMissingPayload     = errors.New("payload is required")
	ErrInvalidTaskStatus  = errors.New("status must be completed, failed, or cancelled")
	ErrUnknownMessageType = errors.New("unknown message type")
)
