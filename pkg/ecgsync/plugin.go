package ecgsync

import (
	"context"

	"github.com/bft-labs/ecgsync/pkg/ecg"
	"github.com/bft-labs/ecgsync/pkg/log"
	"github.com/bft-labs/ecgsync/pkg/transport"
)

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	ServerURL string
	Endpoint  string
	Logger    log.Logger
	Store     *ecg.Store
	Transport *transport.Transport
}

// Plugin extends a Client. Plugins are initialized in registration order
// when the client starts and shut down in reverse order when it stops.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// BasePlugin implements Plugin with no-ops.
type BasePlugin struct {
	PluginName string
}

func (p BasePlugin) Name() string                                  { return p.PluginName }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }
