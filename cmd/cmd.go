// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes a config file and prepares the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "vapid",
				Usage: "Generate VAPID keys when the config has none",
				Value: true,
			},
		},
		Action: r.Setup,
	}
}

// serveCommand runs the web service.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Override the listen address (host:port)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the sign-in page in a browser",
			},
			&cli.BoolFlag{
				Name:  "reminders",
				Usage: "Schedule daily reminders (defaults to reminders.enabled)",
			},
		},
		Action: r.Serve,
	}
}

// migrateCommand manages the database schema.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage database migrations",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Action: r.MigrateUp,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Action: r.MigrateRollback,
			},
			{
				Name:  "status",
				Usage: "Show applied and pending migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MigrateStatus,
			},
		},
	}
}

// pushCommand handles web push operations
func pushCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Web push operations",
		Commands: []*cli.Command{
			{
				Name:  "vapid-keys",
				Usage: "Generate a VAPID key pair",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write the keys to the config file",
					},
				},
				Action: r.PushVAPIDKeys,
			},
			{
				Name:  "test",
				Usage: "Send a test notification to a user's devices",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User email or ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Notification title",
					},
					&cli.StringFlag{
						Name:  "body",
						Usage: "Notification body",
						Value: "Push notifications are working.",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent deliveries",
						Value: 3,
					},
				},
				Action: r.PushTest,
			},
		},
	}
}

// mailCommand handles transactional email operations
func mailCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mail",
		Usage: "Transactional email operations",
		Commands: []*cli.Command{
			{
				Name:  "test",
				Usage: "Send a welcome or reminder email",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Recipient address",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Recipient name",
						Value: "friend",
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "welcome or reminder",
						Value: "welcome",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print the message instead of sending it",
					},
				},
				Action: r.MailTest,
			},
		},
	}
}

// logsCommand handles emotion journal operations
func logsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Emotion journal operations",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export journals to files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "User email or ID (repeatable, default: every user)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, markdown or table",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: moodtape_export_{epoch})",
					},
					&cli.StringFlag{
						Name:  "since",
						Usage: "Only entries logged on or after this date (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:  "until",
						Usage: "Only entries logged before this date (YYYY-MM-DD)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent exports",
						Value: 5,
					},
				},
				Action: r.LogsExport,
			},
		},
	}
}

// playerCommand returns the terminal player command.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"tui", "play"},
		Usage:   "Search and play SoundCloud tracks in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "state",
				Usage: "Player state file (default: ~/.moodtape/player.json)",
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Start on a playlist page, discarding the saved player state",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the player is open",
				Value: "./tmp/moodtape-player.log",
			},
		},
		Action: r.Player,
	}
}
