package agentloop

import (
	"context"

	"agenthub/pkg/interfaces"
)

// runReference is the shared body of every reference AgentLoop: issue one
// command carrying the request text and the loop's platform tag, suspend
// for its result, and surface that result as the session outcome. Real
// platform loops would decide on multiple commands and call Dispatch
// repeatedly; this one exists to exercise the CommandDispatcher contract,
// not to do useful work.
func runReference(ctx context.Context, platform, sessionID, requestText string, dispatcher interfaces.CommandDispatcher) (Outcome, error) {
	payload := map[string]interface{}{
		"platform": platform,
		"request":  requestText,
	}
	res, err := dispatcher.Dispatch(ctx, payload)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: res.Payload}, nil
}
