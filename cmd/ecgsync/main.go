package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/ecgsync/internal/cliconfig"
	"github.com/bft-labs/ecgsync/pkg/ecgsync"
	"github.com/bft-labs/ecgsync/pkg/log"
)

const helpDescription = `
Browse and annotate ECG recordings held by a review server.

The client keeps a live connection to the server, mirrors the recording
list and the annotation taxonomy, and loads signals on demand.
Configure it via file ($HOME/.ecgsync/config.toml), ECGSYNC_* environment
variables, or flags.
`

var exampleUsage = strings.TrimSpace(`
  ecgsync list --server-url https://ecg.example.org
  ecgsync annotate rec-0042 rhythm/afib noise
  ecgsync watch --log-format json
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	changed map[string]bool
	log     zerolog.Logger
}

func main() {
	a := &app{
		cfg: cliconfig.DefaultConfig(),
		log: log.NewConsoleLogger(os.Stderr),
	}

	root := &cobra.Command{
		Use:           "ecgsync",
		Short:         "Browse and annotate ECG recordings on a review server",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.ecgsync/config.toml)")
	flags.StringVar(&a.cfg.ServerURL, "server-url", a.cfg.ServerURL, "review server base URL")
	flags.StringVar(&a.cfg.Namespace, "namespace", a.cfg.Namespace, "websocket namespace path")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format (console or json)")
	flags.DurationVar(&a.cfg.HandshakeTimeout, "handshake-timeout", a.cfg.HandshakeTimeout, "websocket handshake timeout")
	flags.DurationVar(&a.cfg.PingInterval, "ping-interval", a.cfg.PingInterval, "keepalive ping interval")
	flags.DurationVar(&a.cfg.ReconnectInitial, "reconnect-initial", a.cfg.ReconnectInitial, "first reconnect delay")
	flags.DurationVar(&a.cfg.ReconnectMax, "reconnect-max", a.cfg.ReconnectMax, "maximum reconnect delay")
	flags.IntVar(&a.cfg.ReconnectAttempts, "reconnect-attempts", a.cfg.ReconnectAttempts, "reconnect attempts before giving up (0 retries forever)")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "how long one-shot commands wait for the server")

	root.AddCommand(
		a.listCmd(),
		a.showCmd(),
		a.annotateCmd(),
		a.taxonomyCmd(),
		a.archiveCmd(),
		a.watchCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		a.log.Error().Err(err).Msg("ecgsync")
		stop()
		os.Exit(1)
	}
}

// load applies file and environment configuration underneath the flags
// and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	if a.cfgPath == "" {
		a.cfgPath = cliconfig.DefaultConfigPath()
	}

	a.changed = map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { a.changed[f.Name] = true })

	if err := cliconfig.Load(&a.cfg, a.cfgPath, a.changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger, err := cliconfig.Logger(a.cfg, os.Stderr)
	if err != nil {
		return err
	}
	a.log = logger
	a.log.Debug().Interface("config", a.cfg).Msg("configuration")
	return nil
}

// newClient builds a client from the loaded configuration.
func (a *app) newClient(opts ...ecgsync.Option) (*ecgsync.Client, error) {
	opts = append([]ecgsync.Option{
		ecgsync.WithLogger(log.NewZerologAdapterWithLogger(a.log)),
	}, opts...)
	c, err := ecgsync.New(a.cfg.ClientConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

// session starts a client, waits for the first recording list and runs fn.
// The client is stopped when fn returns.
func (a *app) session(ctx context.Context, fn func(ctx context.Context, c *ecgsync.Client) error) (err error) {
	c, err := a.newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	defer func() {
		if stopErr := c.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stop client: %w", stopErr)
		}
	}()

	store := c.Store()
	if err := store.WaitUntil(ctx, store.ListReady); err != nil {
		return fmt.Errorf("waiting for recording list from %s: %w", a.cfg.ServerURL, err)
	}
	return fn(ctx, c)
}
