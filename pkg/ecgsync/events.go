package ecgsync

import (
	"github.com/bft-labs/ecgsync/pkg/ecg"
	"github.com/bft-labs/ecgsync/pkg/lifecycle"
	"github.com/bft-labs/ecgsync/pkg/transport"
)

// State is the lifecycle state of a Client.
type State = lifecycle.State

// Lifecycle states.
const (
	StateStopped  = lifecycle.StateStopped
	StateStarting = lifecycle.StateStarting
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
	StateCrashed  = lifecycle.StateCrashed
)

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// ConnectionEvent is emitted for every transport connection event.
type ConnectionEvent struct {
	Event transport.Event

	// SessionID is set for connect and reconnect.
	SessionID string
}

// EventHandler receives client notifications.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnConnectionChange(event ConnectionEvent)
	OnChange(change ecg.Change)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only some methods.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)     {}
func (BaseEventHandler) OnConnectionChange(ConnectionEvent) {}
func (BaseEventHandler) OnChange(ecg.Change)                {}

// eventEmitter adapts an EventHandler to lifecycle.EventEmitter.
type eventEmitter struct {
	handler EventHandler
}

func (e *eventEmitter) OnStateChange(previous, current lifecycle.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}
