// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that reads config.toml.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes config and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize configuration, database and media cache",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// runCommand starts the headless player daemon
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the player daemon",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Run,
	}
}

// pairCommand drives registration and activation polling
func pairCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pair",
		Usage: "Register this screen and wait for dashboard activation",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Discard the current identity and generate a new one",
			},
		},
		Action: r.Pair,
	}
}

// syncCommand performs a one-shot playlist sync
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Perform a single playlist sync",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the playlist as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Sync,
	}
}

// statusCommand reports local player state
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show screen identity, playlist and queue state",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: r.Status,
	}
}

// rotateCommand changes the display rotation
func rotateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rotate",
		Usage: "Set display rotation and report it to the backend",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:     "degrees",
				Aliases:  []string{"d"},
				Usage:    "Rotation in degrees (0, 90, 180, 270)",
				Required: true,
			},
		},
		Action: r.Rotate,
	}
}

// cacheCommand manages the media cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Media cache operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached media files",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Remove all cached media",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheClear,
			},
			{
				Name:   "sweep",
				Usage:  "Remove media not referenced by the current playlist",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheSweep,
			},
		},
	}
}

// logsCommand manages the proof-of-play queue
func logsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Proof-of-play log operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List queued playback events",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: r.LogsList,
			},
			{
				Name:   "flush",
				Usage:  "Upload queued playback events now",
				Flags:  []cli.Flag{configFlag()},
				Action: r.LogsFlush,
			},
		},
	}
}

// tuiCommand launches the interactive status shell
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Run the player with an interactive terminal interface",
		Flags:  []cli.Flag{configFlag()},
		Action: r.TUI,
	}
}
