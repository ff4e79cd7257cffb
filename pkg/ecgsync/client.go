package ecgsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/ecgsync/internal/adapters/ws"
	"github.com/bft-labs/ecgsync/pkg/ecg"
	"github.com/bft-labs/ecgsync/pkg/lifecycle"
	"github.com/bft-labs/ecgsync/pkg/log"
	"github.com/bft-labs/ecgsync/pkg/transport"
)

// Client errors.
var (
	ErrAlreadyRunning  = lifecycle.ErrAlreadyRunning
	ErrNotRunning      = lifecycle.ErrNotRunning
	ErrShutdownTimeout = lifecycle.ErrShutdownTimeout

	// ErrClientUsed is returned by Start on a client that was started before.
	ErrClientUsed = errors.New("ecgsync: client already used, create a new one")
)

// Client connects to an ECG review server and keeps a Store in sync with
// it. Use New to create one, then Start.
type Client struct {
	config    Config
	endpoint  string
	lifecycle *lifecycle.DefaultManager
	transport *transport.Transport
	store     *ecg.Store
	logger    log.Logger
	handler   EventHandler
	plugins   []Plugin

	mu          sync.Mutex
	used        bool
	cancel      context.CancelFunc
	stopObserve func()
	initialized []Plugin
}

// New creates a Client in StateStopped. The transport and the store are
// built here, so Store may be used before Start.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	dialer := o.dialer
	if dialer == nil {
		dialer = ws.NewDialer(ws.Config{
			HandshakeTimeout: cfg.HandshakeTimeout,
			PingInterval:     cfg.PingInterval,
			WriteTimeout:     cfg.WriteTimeout,
		})
	}

	tr := transport.New(transport.Config{
		URL:               endpoint,
		ReconnectInitial:  cfg.ReconnectInitial,
		ReconnectMax:      cfg.ReconnectMax,
		ReconnectAttempts: cfg.ReconnectAttempts,
	}, dialer, logger)

	c := &Client{
		config:    cfg,
		endpoint:  endpoint,
		lifecycle: lifecycle.NewManager(logger, &eventEmitter{handler: o.eventHandler}),
		transport: tr,
		store:     ecg.NewStore(tr, logger),
		logger:    logger,
		handler:   o.eventHandler,
		plugins:   o.plugins,
	}
	return c, nil
}

// Store returns the cache kept in sync by the client.
func (c *Client) Store() *ecg.Store {
	return c.store
}

// Transport returns the underlying connection.
func (c *Client) Transport() *transport.Transport {
	return c.transport
}

// Status returns the current lifecycle state.
func (c *Client) Status() State {
	return c.lifecycle.State()
}

// Ready reports whether the connection is established.
func (c *Client) Ready() bool {
	return c.transport.Ready()
}

// Start initializes plugins and starts connecting in the background. The
// store syncs itself once the connection is up.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if c.used {
		return ErrClientUsed
	}
	if err := c.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}
	c.used = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	pluginCfg := PluginConfig{
		ServerURL: c.config.ServerURL,
		Endpoint:  c.endpoint,
		Logger:    c.logger,
		Store:     c.store,
		Transport: c.transport,
	}
	for _, p := range c.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err),
			)
			cancel()
			c.shutdownPlugins(context.Background())
			_ = c.lifecycle.TransitionTo(StateCrashed, "plugin init failed: "+p.Name())
			return fmt.Errorf("ecgsync: plugin %s: %w", p.Name(), err)
		}
		c.initialized = append(c.initialized, p)
		c.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	c.observe()

	if err := c.transport.Connect(runCtx); err != nil {
		cancel()
		c.shutdownPlugins(context.Background())
		_ = c.lifecycle.TransitionTo(StateCrashed, err.Error())
		return err
	}

	c.lifecycle.AddWorker()
	go c.supervise(runCtx)

	return nil
}

// observe forwards connection events and store changes to the handler.
func (c *Client) observe() {
	if c.handler == nil {
		c.stopObserve = func() {}
		return
	}

	subs := make([]transport.Subscription, 0, len(transport.ConnectionEvents))
	for _, event := range transport.ConnectionEvents {
		event := event
		subs = append(subs, c.transport.Subscribe(event, func(_ json.RawMessage, meta transport.Meta) {
			c.handler.OnConnectionChange(ConnectionEvent{Event: event, SessionID: meta.SessionID})
		}))
	}
	cancelChanges := c.store.Subscribe(c.handler.OnChange)

	c.stopObserve = func() {
		cancelChanges()
		for _, sub := range subs {
			c.transport.Unsubscribe(sub)
		}
	}
}

// supervise marks the client running and crashes it when the transport
// gives up.
func (c *Client) supervise(ctx context.Context) {
	defer c.lifecycle.WorkerDone()

	if err := c.lifecycle.TransitionTo(StateRunning, "transport started"); err != nil {
		c.logger.Error("failed to transition to running", log.Err(err))
		return
	}

	select {
	case <-ctx.Done():
	case <-c.transport.Done():
		if err := c.transport.Err(); err != nil {
			c.logger.Error("transport stopped", log.Err(err))
			_ = c.lifecycle.TransitionTo(StateCrashed, err.Error())
		}
	}
}

// Stop closes the connection, waits for background work and shuts the
// plugins down. Returns ErrShutdownTimeout if workers did not finish in
// time.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.lifecycle.CanStop() {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if err := c.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	_ = c.transport.Close()
	err := c.lifecycle.WaitWithTimeout(c.config.ShutdownTimeout)

	c.mu.Lock()
	if c.stopObserve != nil {
		c.stopObserve()
		c.stopObserve = nil
	}
	c.shutdownPlugins(context.Background())
	c.mu.Unlock()

	if err != nil {
		_ = c.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
		return err
	}
	_ = c.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	return nil
}

// shutdownPlugins shuts initialized plugins down in reverse order. The
// caller holds c.mu.
func (c *Client) shutdownPlugins(ctx context.Context) {
	for i := len(c.initialized) - 1; i >= 0; i-- {
		p := c.initialized[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err),
			)
			continue
		}
		c.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
	c.initialized = nil
}
