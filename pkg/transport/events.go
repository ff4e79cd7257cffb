package transport

import (
	"encoding/json"

	"github.com/bft-labs/ecgsync/internal/ports"
)

// Event names an inbound or outbound message type.
type Event string

// Connection events. They are produced locally by the transport and
// never accepted from the wire.
const (
	EventConnecting   Event = "connecting"
	EventConnect      Event = "connect"
	EventConnectError Event = "connect_error"
	EventDisconnect   Event = "disconnect"
	EventReconnecting Event = "reconnecting"
	EventReconnect    Event = "reconnect"
)

// ConnectionEvents lists the connection events in lifecycle order.
var ConnectionEvents = []Event{
	EventConnecting,
	EventConnect,
	EventConnectError,
	EventDisconnect,
	EventReconnecting,
	EventReconnect,
}

// IsConnectionEvent reports whether e is one of the locally produced
// connection events.
func IsConnectionEvent(e Event) bool {
	for _, ce := range ConnectionEvents {
		if e == ce {
			return true
		}
	}
	return false
}

// Conn and Dialer are the connection ports the transport is built on.
type (
	Conn   = ports.Conn
	Dialer = ports.Dialer
)

// Meta is the envelope metadata attached to every outbound message and
// echoed back by the server.
type Meta struct {
	SessionID     string `json:"sessionId"`
	TransactionID int64  `json:"transactionId"`
}

// Handler receives the raw payload and envelope metadata of an event.
// Connection events carry no payload.
type Handler func(data json.RawMessage, meta Meta)

// Subscription identifies a registered handler for Unsubscribe.
type Subscription struct {
	event Event
	id    uint64
}

// Event returns the event name the subscription listens to.
func (s Subscription) Event() Event {
	return s.event
}

// Subscriber registers handlers by event name.
type Subscriber interface {
	Subscribe(event Event, handler Handler) Subscription
}

// Handle subscribes fn to event, decoding each payload into T first.
// Payloads that fail to decode are passed to onError (when non-nil) and
// not delivered to fn.
func Handle[T any](s Subscriber, event Event, fn func(T, Meta), onError func(Event, error)) Subscription {
	return s.Subscribe(event, func(data json.RawMessage, meta Meta) {
		var v T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &v); err != nil {
				if onError != nil {
					onError(event, err)
				}
				return
			}
		}
		fn(v, meta)
	})
}

// frame is the wire representation of one event.
type frame struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
	Meta  Meta            `json:"meta"`
}

func encodeFrame(event Event, data interface{}, meta Meta) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: event, Data: raw, Meta: meta})
}

func decodeFrame(b []byte) (frame, error) {
	var f frame
	err := json.Unmarshal(b, &f)
	return f, err
}
