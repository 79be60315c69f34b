// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the HTTP relay
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the OAuth and playback relay",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override server.port",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles configuration and database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// resolveCommand parses a scanned payload
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a scanned link into its Spotify or YouTube targets",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "text",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Record the scan in history",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the resolved link in the browser",
			},
		},
		Action: r.Resolve,
	}
}

// historyCommand handles scan history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect and export scan history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent scans, newest first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of scans to return",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Filter by kind (spotify, youtube, unknown)",
					},
					&cli.StringFlag{
						Name:  "subtype",
						Usage: "Filter by Spotify subtype (track, album, playlist)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (json, csv, markdown, txt)",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "clear",
				Usage: "Delete all recorded scans",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion",
					},
				},
				Action: r.HistoryClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing history.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive history browser",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of recent scans to load",
				Value: 100,
			},
		},
		Action: r.TUI,
	}
}
