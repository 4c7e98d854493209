package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/regio-cloud/regioplayer/internal/shared"
)

// Sync performs a single conditional playlist sync and reports the result.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	previous := ""
	if current := d.engine.Current(); current != nil {
		previous = current.Version
	}

	playlist, err := d.engine.Sync(ctx, nil)
	if err != nil {
		if errors.Is(err, shared.ErrNotActivated) {
			r.writePlain("Screen not yet activated. Run 'regioplayer pair' first.\n")
			return nil
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	if playlist.Version == previous {
		r.writePlain("Playlist unchanged: %s (v%s)\n", playlist.Name, playlist.Version)
		return nil
	}

	r.writePlain("Playlist updated: %s (v%s), %d items\n", playlist.Name, playlist.Version, len(playlist.Items))
	for _, item := range playlist.Items {
		r.writePlain("  [%s] %s (%ds)\n", item.Type, item.URL, item.Duration)
	}
	return nil
}
