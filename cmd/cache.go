package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// CacheList prints cached media files in least recently used order.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	entries, err := d.cache.Entries()
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		r.writePlain("Cache is empty.\n")
		return nil
	}

	var total int64
	for _, entry := range entries {
		r.writePlain("%12d  %s  %s\n", entry.SizeBytes, entry.LastAccess.Format("2006-01-02 15:04:05"), entry.Name)
		total += entry.SizeBytes
	}
	r.writePlain("Total: %d files, %d / %d bytes\n", len(entries), total, r.config.Cache.MaxSizeBytes)
	return nil
}

// CacheClear deletes every cached media file.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	if err := d.cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.writePlain("Cache cleared.\n")
	return nil
}

// CacheSweep removes media the current playlist no longer references.
func (r *Runner) CacheSweep(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	playlist := d.engine.Current()
	if playlist == nil {
		r.writePlain("No playlist cached; nothing to sweep against.\n")
		return nil
	}

	before, _ := d.cache.Size()
	if err := d.cache.SweepUnreferenced(playlist); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	after, _ := d.cache.Size()

	r.writePlain("Sweep complete: reclaimed %d bytes\n", before-after)
	return nil
}
