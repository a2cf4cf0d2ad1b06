package agentloop

import (
	"context"

	"agenthub/pkg/interfaces"
)

// darwinLoop is the reference session implementation for platform "darwin".
type darwinLoop struct{}

func (d *darwinLoop) Run(ctx context.Context, sessionID, requestText string, dispatcher interfaces.CommandDispatcher) (Outcome, error) {
	return runReference(ctx, "darwin", sessionID, requestText, dispatcher)
}
