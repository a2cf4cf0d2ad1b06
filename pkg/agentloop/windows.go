package agentloop

import (
	"context"

	"agenthub/pkg/interfaces"
)

// windowsLoop is the reference session implementation for platform "windows".
type windowsLoop struct{}

func (w *windowsLoop) Run(ctx context.Context, sessionID, requestText string, dispatcher interfaces.CommandDispatcher) (Outcome, error) {
	return runReference(ctx, "windows", sessionID, requestText, dispatcher)
}
