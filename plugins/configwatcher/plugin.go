// Package configwatcher reloads configuration when a file on disk changes.
// It watches the directory holding the file and calls a callback after a
// burst of writes has settled.
package configwatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/ecgsync/pkg/ecgsync"
	"github.com/bft-labs/ecgsync/pkg/log"
)

// ErrNoPath is returned by Initialize when Config.Path is empty.
var ErrNoPath = errors.New("configwatcher: path is required")

// ReloadFunc is called with the watched path after it changed.
type ReloadFunc func(ctx context.Context, path string) error

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnChange is called after each settled change.
	OnChange ReloadFunc
}

// DefaultConfig returns a Config with sensible defaults for path.
func DefaultConfig(path string, onChange ReloadFunc) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
		OnChange:      onChange,
	}
}

// Plugin implements config watching functionality.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	onChange      ReloadFunc

	logger   log.Logger
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  int
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		onChange:      cfg.OnChange,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the configured file.
func (p *Plugin) Initialize(ctx context.Context, cfg ecgsync.PluginConfig) error {
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	if p.path == "" {
		return ErrNoPath
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("config watcher started", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the watcher and any pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
		p.debounce = nil
	}
	p.mu.Unlock()

	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// Reloads returns how many times OnChange has been called.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		p.reload(ctx)
	})
}

func (p *Plugin) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()

	if p.onChange == nil {
		p.logger.Info("config changed", log.String("path", p.path))
		return
	}
	if err := p.onChange(ctx, p.path); err != nil {
		p.logger.Error("config reload failed",
			log.String("path", p.path),
			log.Err(err),
		)
		return
	}
	p.logger.Info("config reloaded", log.String("path", p.path))
}

var _ ecgsync.Plugin = (*Plugin)(nil)
