// Package transport owns the single persistent connection to the sync server.
//
// It knows nothing about the domain: it tracks the connection state, wraps
// outbound payloads in an envelope, routes inbound events to subscribers by
// name and allocates correlation tokens.
//
// # Usage
//
//	t := transport.New(transport.Config{URL: "ws://localhost:9090/api"}, dialer, logger)
//	transport.Handle(t, "ECG_GOT_LIST", func(items []Item, meta transport.Meta) { ... }, nil)
//	t.Subscribe(transport.EventConnect, func(json.RawMessage, transport.Meta) { ... })
//	if err := t.Connect(ctx); err != nil { ... }
//	defer t.Close()
//
// # Connection State Machine
//
// Valid state transitions:
//   - Disconnected -> Connecting, Reconnecting
//   - Connecting -> Connected, Disconnected
//   - Reconnecting -> Connected, Disconnected
//   - Connected -> Disconnected
//
// Every transition emits one of the connection events (connecting, connect,
// connect_error, disconnect, reconnecting, reconnect) to its subscribers.
//
// # Event Loop
//
// Inbound events and connection events are dispatched one at a time from the
// supervisor goroutine, so handlers never interleave with each other.
// Send may be called from any goroutine. Messages sent while the connection
// is not established are dropped, not queued.
package transport
