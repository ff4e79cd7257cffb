package ports

import "context"

// Conn is an established message-oriented connection.
// ReadMessage is called from a single goroutine; WriteMessage calls are
// serialized by the caller. Close may be called concurrently with both.
type Conn interface {
	// ReadMessage blocks until the next complete message arrives.
	// Any error means the connection is no longer usable.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one complete message.
	WriteMessage(data []byte) error

	// Close releases the connection and unblocks a pending ReadMessage.
	Close() error
}

// Dialer establishes connections to the sync server.
type Dialer interface {
	// Dial connects to url. It honours ctx for the handshake only.
	Dial(ctx context.Context, url string) (Conn, error)
}
