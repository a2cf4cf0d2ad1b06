// Package protocol builds typed wire messages for the Hub's sub-protocols,
// giving each outbound message kind one named constructor instead of ad hoc
// `types.Message{...}` construction at call sites.
package protocol

import "agenthub/pkg/types"

// NewRegisterConfirm acknowledges a successful REGISTER.
func NewRegisterConfirm(clientID string) *types.Message {
	return &types.Message{Type: types.TypeRegisterConfirm, ClientID: clientID}
}

// NewRegisterError rejects a REGISTER with detail explaining why.
func NewRegisterError(detail string) *types.Message {
	return &types.Message{Type: types.TypeRegisterError, Detail: detail}
}
