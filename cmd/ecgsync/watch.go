package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/ecgsync/internal/cliconfig"
	"github.com/bft-labs/ecgsync/pkg/ecg"
	"github.com/bft-labs/ecgsync/pkg/ecgsync"
	"github.com/bft-labs/ecgsync/plugins/configwatcher"
)

// logHandler logs client events.
type logHandler struct {
	ecgsync.BaseEventHandler
	log   zerolog.Logger
	store func() *ecg.Store
}

func (h *logHandler) OnStateChange(e ecgsync.StateChangeEvent) {
	h.log.Info().
		Str("from", e.Previous.String()).
		Str("to", e.Current.String()).
		Str("reason", e.Reason).
		Msg("client state")
}

func (h *logHandler) OnConnectionChange(e ecgsync.ConnectionEvent) {
	ev := h.log.Info()
	if e.SessionID != "" {
		ev = ev.Str("session", e.SessionID)
	}
	ev.Str("event", string(e.Event)).Msg("connection")
}

func (h *logHandler) OnChange(c ecg.Change) {
	switch c.Kind {
	case ecg.ChangeServerError:
		h.log.Error().Err(c.Err).Msg("server error")
	case ecg.ChangeListReady:
		h.log.Info().Int("records", h.store().Len()).Msg("recording list synced")
	case ecg.ChangeRecordUpdated:
		r, ok := h.store().Peek(c.ID)
		if !ok {
			return
		}
		h.log.Debug().
			Str("id", c.ID).
			Str("status", r.Status().String()).
			Strs("annotation", r.Annotation).
			Msg("record updated")
	default:
		ev := h.log.Debug().Str("change", c.Kind.String())
		if c.ID != "" {
			ev = ev.Str("id", c.ID)
		}
		ev.Msg("store change")
	}
}

func (a *app) watchCmd() *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and log every change until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), reload)
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", true, "reload the log level when the config file changes")
	return cmd
}

func (a *app) watch(ctx context.Context, reload bool) error {
	var client *ecgsync.Client
	handler := &logHandler{
		log:   a.log,
		store: func() *ecg.Store { return client.Store() },
	}

	opts := []ecgsync.Option{ecgsync.WithEventHandler(handler)}
	if reload && cliconfig.FileExists(a.cfgPath) {
		opts = append(opts, configwatcher.WithConfigWatcher(
			configwatcher.DefaultConfig(a.cfgPath, a.reloadLogLevel),
		))
	}

	client, err := a.newClient(opts...)
	if err != nil {
		return err
	}
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	// Poll for a crash, e.g. when reconnect attempts run out.
	crashed := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if client.Status() == ecgsync.StateCrashed {
					close(crashed)
					return
				}
			}
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("received signal, stopping...")
	case <-crashed:
		runErr = errors.New("client crashed")
	}

	if err := client.Stop(); err != nil {
		return errors.Join(runErr, fmt.Errorf("stop client: %w", err))
	}
	return runErr
}

// reloadLogLevel re-reads the config file and applies its log level. Flags
// and environment still take precedence.
func (a *app) reloadLogLevel(_ context.Context, path string) error {
	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		return err
	}
	cfg := a.cfg
	if err := cliconfig.ApplyFileConfig(&cfg, fc, a.changed); err != nil {
		return err
	}
	if err := cliconfig.ApplyEnvConfig(&cfg, a.changed); err != nil {
		return err
	}
	if err := cliconfig.SetLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	a.log.Info().Str("level", cfg.LogLevel).Msg("log level reloaded")
	return nil
}
