package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/ecgsync/pkg/log"
)

// Transport errors.
var (
	// ErrNotConnected is returned by Send when the message was dropped
	// because the connection is not established.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("transport: closed")

	// ErrReconnectExhausted is reported by Err when the configured number
	// of reconnection attempts failed.
	ErrReconnectExhausted = errors.New("transport: reconnection attempts exhausted")

	// ErrInvalidTransition indicates an internal state machine violation.
	ErrInvalidTransition = errors.New("transport: invalid state transition")
)

// maxTransactionID bounds correlation tokens to [1, maxTransactionID].
const maxTransactionID = 123456789

// Config configures a Transport.
type Config struct {
	// URL is the endpoint handed to the Dialer.
	URL string

	// ReconnectInitial is the delay before the first reconnection attempt.
	ReconnectInitial time.Duration

	// ReconnectMax caps the exponential reconnection delay.
	ReconnectMax time.Duration

	// ReconnectAttempts limits consecutive failed reconnection attempts.
	// Zero retries forever.
	ReconnectAttempts int
}

// TransactionState is the state of a correlation token.
type TransactionState int

const (
	TransactionPending TransactionState = iota
)

// Transaction is an allocated correlation token.
type Transaction struct {
	ID    int64
	State TransactionState
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Transport owns one persistent connection and routes its events.
type Transport struct {
	cfg    Config
	dialer Dialer
	logger log.Logger

	mu        sync.RWMutex
	state     State
	conn      Conn
	sessionID string
	handlers  map[Event][]subscriber
	nextSubID uint64
	started   bool
	closed    bool
	cancel    context.CancelFunc
	err       error

	// writeMu serializes writes on the active connection.
	writeMu sync.Mutex

	txMu         sync.Mutex
	transactions map[int64]Transaction

	done chan struct{}
}

// New creates a disconnected Transport. Call Connect to start it.
func New(cfg Config, dialer Dialer, logger log.Logger) *Transport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Transport{
		cfg:          cfg,
		dialer:       dialer,
		logger:       log.With(logger, log.String("component", "transport")),
		state:        StateDisconnected,
		handlers:     make(map[Event][]subscriber),
		transactions: make(map[int64]Transaction),
		done:         make(chan struct{}),
	}
}

// Connect starts the connection supervisor. It returns immediately; the
// outcome is reported through connection events. Calling Connect on a
// started transport is a no-op.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.started = true
	t.cancel = cancel

	go t.run(runCtx)
	return nil
}

// Close stops the supervisor, closes the connection and waits for the
// final disconnect to be dispatched.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	started := t.started
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-t.done
	}
	return nil
}

// Done is closed when the supervisor exits.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Err returns the reason the supervisor gave up, if any.
func (t *Transport) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Ready reports whether the connection is established.
func (t *Transport) Ready() bool {
	return t.State() == StateConnected
}

// SessionID returns the id of the current connection, or "" when
// disconnected.
func (t *Transport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// Send writes event with data on the connection. When not connected the
// message is dropped and ErrNotConnected is returned.
func (t *Transport) Send(event Event, data interface{}) error {
	return t.SendWithTransaction(event, data, 0)
}

// SendWithTransaction is Send with a correlation token in the envelope.
func (t *Transport) SendWithTransaction(event Event, data interface{}, transactionID int64) error {
	t.mu.RLock()
	conn, state, sessionID := t.conn, t.state, t.sessionID
	t.mu.RUnlock()

	if state != StateConnected || conn == nil {
		t.logger.Debug("dropping message, not connected",
			log.String("event", string(event)),
			log.String("state", state.String()),
		)
		return ErrNotConnected
	}

	b, err := encodeFrame(event, data, Meta{SessionID: sessionID, TransactionID: transactionID})
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", event, err)
	}

	t.writeMu.Lock()
	err = conn.WriteMessage(b)
	t.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("transport: write %s: %w", event, err)
	}

	t.logger.Debug("sent", log.String("event", string(event)), log.Int("bytes", len(b)))
	return nil
}

// Subscribe registers handler for event.
func (t *Transport) Subscribe(event Event, handler Handler) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSubID++
	id := t.nextSubID
	t.handlers[event] = append(t.handlers[event], subscriber{id: id, handler: handler})
	return Subscription{event: event, id: id}
}

// Unsubscribe removes a handler registered with Subscribe.
func (t *Transport) Unsubscribe(sub Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.handlers[sub.event]
	for i, s := range subs {
		if s.id == sub.id {
			t.handlers[sub.event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(t.handlers[sub.event]) == 0 {
		delete(t.handlers, sub.event)
	}
}

// StartTransaction allocates a correlation token and records it as pending.
// Tokens are random; collisions are unlikely but not excluded.
func (t *Transport) StartTransaction() int64 {
	id := rand.Int63n(maxTransactionID) + 1

	t.txMu.Lock()
	t.transactions[id] = Transaction{ID: id, State: TransactionPending}
	t.txMu.Unlock()
	return id
}

// EndTransaction discards a correlation token.
func (t *Transport) EndTransaction(id int64) {
	t.txMu.Lock()
	delete(t.transactions, id)
	t.txMu.Unlock()
}

// Transaction returns the recorded token, if any.
func (t *Transport) Transaction(id int64) (Transaction, bool) {
	t.txMu.Lock()
	defer t.txMu.Unlock()
	tx, ok := t.transactions[id]
	return tx, ok
}

// PendingTransactions returns the number of outstanding tokens.
func (t *Transport) PendingTransactions() int {
	t.txMu.Lock()
	defer t.txMu.Unlock()
	return len(t.transactions)
}

// run is the connection supervisor and the event loop.
func (t *Transport) run(ctx context.Context) {
	defer close(t.done)

	backoff := NewBackoff(t.cfg.ReconnectInitial, t.cfg.ReconnectMax)
	reconnecting := false
	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if reconnecting {
			attempts++
			if t.cfg.ReconnectAttempts > 0 && attempts > t.cfg.ReconnectAttempts {
				t.logger.Error("giving up reconnecting", log.Int("attempts", attempts-1))
				t.mu.Lock()
				t.err = ErrReconnectExhausted
				t.mu.Unlock()
				return
			}
			t.transitionTo(StateReconnecting, EventReconnecting, nil)
		} else {
			t.transitionTo(StateConnecting, EventConnecting, nil)
		}

		conn, err := t.dialer.Dial(ctx, t.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				t.transitionTo(StateDisconnected, "", nil)
				return
			}
			t.logger.Warn("connect failed", log.Err(err), log.String("url", t.cfg.URL))
			t.transitionTo(StateDisconnected, EventConnectError, nil)
			reconnecting = true
			if !sleepContext(ctx, backoff.Next()) {
				return
			}
			continue
		}

		// Unblock the reader when the transport is closed.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

		t.transitionTo(StateConnected, EventConnect, conn)
		if reconnecting {
			t.dispatch(EventReconnect, nil, Meta{SessionID: t.SessionID()})
		}
		t.logger.Info("connected",
			log.String("url", t.cfg.URL),
			log.String("session", t.SessionID()),
		)
		backoff.Reset()
		attempts = 0

		err = t.readLoop(conn)
		stop()
		_ = conn.Close()

		t.transitionTo(StateDisconnected, EventDisconnect, nil)
		if ctx.Err() != nil {
			t.logger.Info("disconnected")
			return
		}

		t.logger.Warn("connection lost", log.Err(err))
		reconnecting = true
		if !sleepContext(ctx, backoff.Next()) {
			return
		}
	}
}

// readLoop dispatches inbound frames until the connection fails.
func (t *Transport) readLoop(conn Conn) error {
	for {
		b, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		f, err := decodeFrame(b)
		if err != nil {
			t.logger.Warn("dropping malformed frame", log.Err(err), log.Int("bytes", len(b)))
			continue
		}
		if f.Event == "" || IsConnectionEvent(f.Event) {
			t.logger.Warn("dropping frame with reserved or empty event", log.String("event", string(f.Event)))
			continue
		}

		t.dispatch(f.Event, f.Data, f.Meta)
	}
}

// transitionTo moves the state machine and emits event (when non-empty).
// conn becomes the active connection; it is nil for every state but
// StateConnected.
func (t *Transport) transitionTo(next State, event Event, conn Conn) {
	t.mu.Lock()
	prev := t.state
	if !canTransition(prev, next) {
		t.mu.Unlock()
		t.logger.Error("state machine violation",
			log.Err(ErrInvalidTransition),
			log.String("from", prev.String()),
			log.String("to", next.String()),
		)
		return
	}
	t.state = next
	t.conn = conn
	if next == StateConnected {
		t.sessionID = uuid.NewString()
	} else {
		t.sessionID = ""
	}
	sessionID := t.sessionID
	t.mu.Unlock()

	t.logger.Debug("state transition",
		log.String("from", prev.String()),
		log.String("to", next.String()),
	)

	if event != "" {
		t.dispatch(event, nil, Meta{SessionID: sessionID})
	}
}

// dispatch calls the handlers of event in registration order.
func (t *Transport) dispatch(event Event, data json.RawMessage, meta Meta) {
	t.mu.RLock()
	subs := append([]subscriber(nil), t.handlers[event]...)
	t.mu.RUnlock()

	if len(subs) == 0 {
		t.logger.Debug("no subscribers", log.String("event", string(event)))
		return
	}
	for _, s := range subs {
		s.handler(data, meta)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
