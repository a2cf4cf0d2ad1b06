package agentloop

import (
	"context"

	"agenthub/pkg/interfaces"
)

// linuxLoop is the reference session implementation for platform "linux".
type linuxLoop struct{}

func (l *linuxLoop) Run(ctx context.Context, sessionID, requestText string, dispatcher interfaces.CommandDispatcher) (Outcome, error) {
	return runReference(ctx, "linux", sessionID, requestText, dispatcher)
}
