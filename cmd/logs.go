package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// LogsList prints queued proof-of-play events.
func (r *Runner) LogsList(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	entries, _, err := d.playlogs.All()
	if err != nil {
		return fmt.Errorf("failed to read log queue: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		r.writePlain("Log queue is empty.\n")
		return nil
	}

	for _, entry := range entries {
		r.writePlain("%s  %-5s  media=%d playlist=%d\n", entry.Timestamp, entry.EventType, entry.MediaID, entry.PlaylistID)
	}
	r.writePlain("Total: %d queued events\n", len(entries))
	return nil
}

// LogsFlush uploads the queued events immediately.
func (r *Runner) LogsFlush(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	before, err := d.logs.Pending()
	if err != nil {
		return fmt.Errorf("failed to count log queue: %w", err)
	}
	if before == 0 {
		r.writePlain("Log queue is empty.\n")
		return nil
	}

	if err := d.logs.Flush(ctx); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	r.writePlain("Flushed %d events.\n", before)
	return nil
}
