// Package lifecycle provides the state machine that guards starting and
// stopping a long-running client.
//
// A Manager tracks the client state (Stopped, Starting, Running, Stopping,
// Crashed), rejects invalid transitions, reports every change to an
// EventEmitter and counts background workers so shutdown can wait for them
// with a deadline.
//
//	manager := lifecycle.NewManager(logger, emitter)
//	if !manager.CanStart() {
//	    return lifecycle.ErrAlreadyRunning
//	}
//	_ = manager.TransitionTo(lifecycle.StateStarting, "start requested")
//
//	manager.AddWorker()
//	go func() {
//	    defer manager.WorkerDone()
//	    // ...
//	}()
//
//	if err := manager.WaitWithTimeout(lifecycle.ShutdownTimeout); err != nil {
//	    return err
//	}
//
// # State Machine
//
// Valid state transitions:
//   - Stopped -> Starting
//   - Starting -> Running, Stopping, Crashed
//   - Running -> Stopping, Crashed
//   - Stopping -> Stopped, Crashed
//   - Crashed -> Starting, Stopping
package lifecycle
