package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agenthub/internal/metrics"
	"agenthub/internal/protocol"
	"agenthub/pkg/interfaces"
	"agenthub/pkg/types"
)

// dispatcher implements interfaces.CommandDispatcher for one session, built
// on a correlation-id-keyed map of oneshot channels — the shape grounded in
// the leapmux hub reference's pendingReqs pattern: a map from response_id
// to a channel that set_result sends on exactly once.
type dispatcher struct {
	mu        sync.Mutex
	pending   map[string]chan interfaces.CommandResult
	sessionID string
	transport interfaces.Transport

	startedAt    time.Time
	firstCommand sync.Once
}

func newDispatcher(sessionID string, transport interfaces.Transport) *dispatcher {
	return &dispatcher{
		pending:   make(map[string]chan interfaces.CommandResult),
		sessionID: sessionID,
		transport: transport,
		startedAt: time.Now(),
	}
}

// RegisterWaiter records responseID before the matching COMMAND is sent, so
// an early-arriving COMMAND_RESULTS always finds a waiter.
func (d *dispatcher) RegisterWaiter(responseID string) <-chan interfaces.CommandResult {
	ch := make(chan interfaces.CommandResult, 1)
	d.mu.Lock()
	d.pending[responseID] = ch
	d.mu.Unlock()
	return ch
}

// SetResult delivers result to the waiter registered for responseID.
// Subsequent deliveries for the same id are discarded.
func (d *dispatcher) SetResult(responseID string, result interfaces.CommandResult) bool {
	d.mu.Lock()
	ch, ok := d.pending[responseID]
	if ok {
		delete(d.pending, responseID)
	}
	d.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result
	return true
}

// AwaitResult suspends for responseID, a waiter for which the caller must
// have already registered via RegisterWaiter.
func (d *dispatcher) AwaitResult(ctx context.Context, responseID string) (interfaces.CommandResult, error) {
	d.mu.Lock()
	ch, ok := d.pending[responseID]
	d.mu.Unlock()
	if !ok {
		return interfaces.CommandResult{}, fmt.Errorf("session: no waiter registered for %s", responseID)
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		d.drop(responseID)
		return interfaces.CommandResult{}, ctx.Err()
	}
}

// Dispatch mints a fresh response_id, registers a waiter for it, sends the
// COMMAND, and suspends — composing the two primitives above for the
// common "send one command, wait for its result" case the agent loop uses.
func (d *dispatcher) Dispatch(ctx context.Context, payload map[string]interface{}) (interfaces.CommandResult, error) {
	d.firstCommand.Do(func() {
		metrics.ObserveDispatchToFirstCommand(time.Since(d.startedAt).Seconds())
	})

	responseID := uuid.New().String()
	ch := d.RegisterWaiter(responseID)

	msg := protocol.NewCommand(d.sessionID, responseID, payload)
	if err := d.transport.Send(ctx, msg); err != nil {
		d.drop(responseID)
		return interfaces.CommandResult{}, err
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		d.drop(responseID)
		return interfaces.CommandResult{}, ctx.Err()
	}
}

func (d *dispatcher) drop(responseID string) {
	d.mu.Lock()
	delete(d.pending, responseID)
	d.mu.Unlock()
}
