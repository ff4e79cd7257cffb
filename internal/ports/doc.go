// Package ports defines the interfaces (ports) that connect the transport to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [Conn]: one established, message-oriented bidirectional connection
//   - [Dialer]: establishes a Conn to a server URL
//
// The transport depends only on these interfaces. The gorilla/websocket
// implementation lives in internal/adapters/ws; tests substitute in-memory
// fakes.
package ports
