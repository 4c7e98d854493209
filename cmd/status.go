package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// screenStatus is the JSON shape of the status command output.
type screenStatus struct {
	UniqueKey    string `json:"unique_key"`
	Name         string `json:"name,omitzero"`
	PairingCode  string `json:"pairing_code"`
	IsActive     bool   `json:"is_active"`
	Rotation     int    `json:"rotation"`
	LastSyncAt   string `json:"last_sync_at,omitzero"`
	Playlist     string `json:"playlist,omitzero"`
	Version      string `json:"playlist_version,omitzero"`
	Items        int    `json:"items"`
	PendingLogs  int    `json:"pending_logs"`
	CacheBytes   int64  `json:"cache_bytes"`
	CacheMaxSize int64  `json:"cache_max_bytes"`
}

// Status prints the persisted player state without contacting the backend.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	screen, err := d.screens.Get()
	if err != nil {
		return fmt.Errorf("failed to load screen: %w", err)
	}
	if screen == nil {
		r.writePlain("No screen identity. Run 'regioplayer pair' to create one.\n")
		return nil
	}

	status := screenStatus{
		UniqueKey:    screen.UniqueKey,
		Name:         screen.Name,
		PairingCode:  screen.PairingCode,
		IsActive:     screen.IsActive,
		Rotation:     screen.Rotation,
		CacheMaxSize: r.config.Cache.MaxSizeBytes,
	}
	if !screen.LastSyncAt.IsZero() {
		status.LastSyncAt = screen.LastSyncAt.Format("2006-01-02 15:04:05")
	}
	if playlist := d.engine.Current(); playlist != nil {
		status.Playlist = playlist.Name
		status.Version = playlist.Version
		status.Items = len(playlist.Items)
	}
	if pending, err := d.playlogs.Count(); err == nil {
		status.PendingLogs = pending
	}
	if size, err := d.cache.Size(); err == nil {
		status.CacheBytes = size
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlain("Screen:       %s\n", displayName(status.Name))
	r.writePlain("Unique key:   %s\n", status.UniqueKey)
	r.writePlain("Pairing code: %s\n", status.PairingCode)
	r.writePlain("Active:       %t\n", status.IsActive)
	r.writePlain("Rotation:     %d°\n", status.Rotation)
	if status.LastSyncAt != "" {
		r.writePlain("Last sync:    %s\n", status.LastSyncAt)
	}
	if status.Playlist != "" {
		r.writePlain("Playlist:     %s (v%s), %d items\n", status.Playlist, status.Version, status.Items)
	} else {
		r.writePlain("Playlist:     none\n")
	}
	r.writePlain("Queued logs:  %d\n", status.PendingLogs)
	r.writePlain("Cache:        %d / %d bytes\n", status.CacheBytes, status.CacheMaxSize)
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

// Rotate persists a rotation change and reports it to the backend.
func (r *Runner) Rotate(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	degrees := int(cmd.Int("degrees"))
	switch degrees {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("invalid rotation %d: must be 0, 90, 180 or 270", degrees)
	}

	d, closeDeps, err := r.buildDeps()
	if err != nil {
		return err
	}
	defer closeDeps()

	if err := d.engine.ReportRotation(ctx, degrees); err != nil {
		return fmt.Errorf("rotation change failed: %w", err)
	}

	r.writePlain("Rotation set to %d°\n", degrees)
	return nil
}
