package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/regio-cloud/regioplayer/internal/player"
	"github.com/regio-cloud/regioplayer/internal/shared"
	"github.com/regio-cloud/regioplayer/internal/tasks"
	"github.com/regio-cloud/regioplayer/internal/ui"
)

// TUI runs the player with the interactive terminal interface.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/regioplayer-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	progress := make(chan tasks.ProgressUpdate, 50)
	p := r.buildPlayer(d, player.NewNopSurface(), progress)

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}
	defer p.Stop()

	model := ui.NewModel(ctx, p, progress)
	program := tea.NewProgram(model)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
