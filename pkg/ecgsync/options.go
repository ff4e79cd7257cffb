package ecgsync

import (
	"github.com/bft-labs/ecgsync/pkg/log"
	"github.com/bft-labs/ecgsync/pkg/transport"
)

// Option configures optional behavior of a Client.
type Option func(*options)

type options struct {
	logger       log.Logger
	dialer       transport.Dialer
	eventHandler EventHandler
	plugins      []Plugin
}

// WithLogger sets the structured logger. Default: no output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialer replaces the websocket dialer, mainly for tests.
func WithDialer(dialer transport.Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithEventHandler sets a handler for client events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized on Start.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
