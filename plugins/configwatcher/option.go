package configwatcher

import "github.com/bft-labs/ecgsync/pkg/ecgsync"

// WithConfigWatcher returns an ecgsync Option that enables config file
// watching.
//
// Usage:
//
//	c, err := ecgsync.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:     "/etc/ecgsync/config.toml",
//	        OnChange: reload,
//	    }),
//	)
func WithConfigWatcher(cfg Config) ecgsync.Option {
	return ecgsync.WithPlugin(New(cfg))
}
