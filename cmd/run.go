package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/regio-cloud/regioplayer/internal/player"
	"github.com/regio-cloud/regioplayer/internal/tasks"
)

// relaunchDelay spaces restarts so a crash loop does not spin the process.
const relaunchDelay = 5 * time.Second

// buildPlayer assembles the full playback stack over d. progress may be nil.
func (r *Runner) buildPlayer(d *deps, surface player.RenderSurface, progress chan tasks.ProgressUpdate) *tasks.Player {
	scheduler := player.NewScheduler(surface, d.cache, d.logs, r.logger)
	realtime := tasks.NewRealtimeChannel(
		r.config.Server.WSURL,
		r.config.Player.Version,
		r.config.Player.Resolution,
		r.config.Player.WSReconnectDelay(),
		tasks.RealtimeHandlers{},
		r.logger,
	)

	return tasks.NewPlayer(
		d.engine, d.pairing, d.logs, realtime, scheduler,
		d.screens, d.cache,
		r.config.Player.SyncInterval(), progress, r.logger,
	)
}

// Run starts the headless player daemon and blocks until SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	p := r.buildPlayer(d, player.NewNopSurface(), nil)
	p.OnFatal(func(reason any) {
		// Exit after a short delay and let the service manager relaunch.
		r.logger.Error("fatal player failure, exiting for relaunch", "reason", reason)
		time.Sleep(relaunchDelay)
		os.Exit(1)
	})

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}

	r.logger.Info("player running", "sync_interval", r.config.Player.SyncInterval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		r.logger.Info("shutting down", "signal", sig)
	case <-ctx.Done():
	}

	p.Stop()
	return nil
}
