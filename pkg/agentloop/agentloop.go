// Package agentloop stands in for the LLM-driven agent the Hub treats as an
// out-of-scope collaborator: a black box that uses exactly one capability —
// CommandDispatcher.Dispatch — and terminates with a result payload.
// This package supplies that interface plus one reference implementation
// per platform, enough to exercise the CommandDispatcher round trip end to
// end without pulling in an actual LLM integration.
package agentloop

import (
	"context"
	"errors"

	"agenthub/pkg/interfaces"
)

// ErrUnknownPlatform is returned by New when no loop is registered for the
// requested platform string.
var ErrUnknownPlatform = errors.New("agentloop: unknown platform")

// Outcome is what a session's background activity produces on success.
type Outcome struct {
	Result map[string]interface{}
}

// AgentLoop runs one session to completion, issuing zero or more commands
// through dispatcher and suspending on each via Dispatch. It returns
// ctx.Err() (wrapped or bare) when ctx is cancelled mid-flight — the
// session manager translates that into a specific cancellation outcome
// rather than a generic failure.
type AgentLoop interface {
	Run(ctx context.Context, sessionID, requestText string, dispatcher interfaces.CommandDispatcher) (Outcome, error)
}

// Factory constructs an AgentLoop for one platform.
type Factory func() AgentLoop

var registry = map[string]Factory{
	"linux":   func() AgentLoop { return &linuxLoop{} },
	"windows": func() AgentLoop { return &windowsLoop{} },
	"darwin":  func() AgentLoop { return &darwinLoop{} },
}

// New selects the session implementation for platform. The manager owns no
// platform-specific logic itself; it only calls this factory.
func New(platform string) (AgentLoop, error) {
	factory, ok := registry[platform]
	if !ok {
		return nil, ErrUnknownPlatform
	}
	return factory(), nil
}
