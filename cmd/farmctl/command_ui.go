package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/farmctl/internal/config"
	"github.com/mattjoyce/farmctl/internal/dispatch"
	"github.com/mattjoyce/farmctl/internal/lock"
	"github.com/mattjoyce/farmctl/internal/log"
	"github.com/mattjoyce/farmctl/internal/storage"
	"github.com/mattjoyce/farmctl/internal/supervisor"
	"github.com/mattjoyce/farmctl/internal/tui"
)

func newUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive controller (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd, opts)
		},
	}
}

func runUI(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg, nil, true)
	if err != nil {
		return err
	}
	defer closeLog()

	logger := log.WithComponent("main")
	logger.Info("farmctl starting", "version", currentVersionInfo().Version, "config", cfg.Path, "mode", cfg.Deployment.Mode)

	pidLock, err := lock.AcquirePIDLock(cfg.Service.LockPath)
	if err != nil {
		return err
	}
	defer pidLock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	uiOpts := tui.Options{
		Mode:        cfg.Deployment.Mode,
		Endpoint:    cfg.Endpoint.URL,
		Client:      client,
		Dispatcher:  dispatch.New(client, cfg.Deployment.Mode),
		SettleDelay: cfg.Worker.SettleDelay,
		StatusVerb:  cfg.Worker.StatusVerb,
	}
	bridge := tui.NewBridge()

	if cfg.IsLocal() {
		observers := supervisor.Observers{bridge}

		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Warn("run ledger unavailable", "path", cfg.State.Path, "error", err)
		} else {
			defer db.Close()
			runs := storage.NewRunStore(db)
			if n, err := runs.CloseOrphans(ctx, time.Now()); err != nil {
				logger.Warn("failed to close orphaned runs", "error", err)
			} else if n > 0 {
				logger.Info("closed orphaned runs from a previous session", "count", n)
			}
			observers = append(observers, storage.NewRunRecorder(runs, cfg.Worker.Binary))
		}

		uiOpts.Worker = supervisor.New(supervisor.Config{
			Binary:      cfg.Worker.Binary,
			Args:        cfg.Worker.Args,
			WorkDir:     cfg.Worker.WorkDir,
			Env:         cfg.Worker.Env,
			GracePeriod: cfg.Worker.GracePeriod,
		}, observers)
		uiOpts.Preflight = preflight(cfg)
	}

	if err := tui.Run(ctx, uiOpts, bridge); err != nil && ctx.Err() == nil {
		return fmt.Errorf("ui: %w", err)
	}
	logger.Info("farmctl exiting")
	return nil
}

// preflight refuses to start a second copy of a worker that is already running.
func preflight(cfg *config.Config) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := supervisor.ValidateBinary(cfg.Worker.Binary); err != nil {
			return err
		}
		pid, found, err := supervisor.FindRunning(ctx, cfg.Worker.Binary)
		if err != nil {
			log.WithComponent("main").Warn("could not check for a running worker", "error", err)
			return nil
		}
		if found {
			return fmt.Errorf("%w outside farmctl (pid %d)", supervisor.ErrAlreadyRunning, pid)
		}
		return nil
	}
}
