package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/regio-cloud/regioplayer/internal/models"
	"github.com/regio-cloud/regioplayer/internal/tasks"
)

// Pair registers the screen and polls until an operator activates it.
func (r *Runner) Pair(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	var screen *models.Screen
	if cmd.Bool("reset") {
		screen, err = d.pairing.Reset(ctx)
	} else {
		screen, err = d.pairing.Initialize(ctx)
	}
	if err != nil {
		return fmt.Errorf("pairing failed: %w", err)
	}

	r.writePlain("Pairing code: %s\n", screen.PairingCode)
	r.writePlain("Enter this code in the dashboard to activate the screen.\n")

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("\r%s", update.Message)
		}
	}()

	playlist, pollErr := d.pairing.PollForActivation(ctx, progress)
	close(progress)
	<-done
	r.writePlain("\n")

	if pollErr != nil {
		return pollErr
	}

	r.writePlainln("Screen activated. Playlist: %s (v%s)", playlist.Name, playlist.Version)
	return nil
}
