// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/pinx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// setupCommand creates the config file and prepares the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the local database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles the Pinterest OAuth flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect Pinterest accounts with OAuth2",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Open the browser, wait for the callback and connect the account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "url",
				Usage:  "Print an authorization URL and its state",
				Action: r.AuthURL,
			},
		},
	}
}

// connectCommand finishes a connection from an authorization code obtained elsewhere
func connectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Exchange an authorization code and store the account with its boards",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "code"},
		},
		Action: r.Connect,
	}
}

// accountsCommand manages stored accounts
func accountsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "accounts",
		Aliases: []string{"acc"},
		Usage:   "List, inspect and disconnect accounts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List connected accounts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.AccountsList,
			},
			{
				Name:  "show",
				Usage: "Show one account",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AccountsShow,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm", "disconnect"},
				Usage:   "Disconnect an account and delete its boards",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.AccountsRemove,
			},
		},
	}
}

// boardsCommand reads, refreshes and exports boards
func boardsCommand(r *Runner) *cli.Command {
	accountFlag := &cli.StringFlag{
		Name:    "account",
		Aliases: []string{"a"},
		Usage:   "Account ID (default: the selected account)",
	}

	return &cli.Command{
		Name:  "boards",
		Usage: "Board operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored boards of an account",
				Flags: []cli.Flag{
					accountFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.BoardsList,
			},
			{
				Name:  "refresh",
				Usage: "Re-fetch boards from Pinterest",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "account",
						Aliases: []string{"a"},
						Usage:   "Account ID to refresh, repeatable (default: every account)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent fetches",
						Value: 3,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Fetches started per second (default: pinterest.rate_limit)",
					},
				},
				Action: r.BoardsRefresh,
			},
			{
				Name:  "export",
				Usage: "Export an account and its boards",
				Flags: []cli.Flag{
					accountFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "One of json, yaml, csv, markdown, txt",
						Value:   formatter.FormatJSON,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
						Value:   ".",
					},
				},
				Action: r.BoardsExport,
			},
		},
	}
}

// serveCommand runs the HTTP servers
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the token proxy or the document store",
		Commands: []*cli.Command{
			{
				Name:  "proxy",
				Usage: "Serve the Pinterest token exchange proxy",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (default: server.host:server.proxy_port)",
					},
				},
				Action: r.ServeProxy,
			},
			{
				Name:    "docstore",
				Aliases: []string{"store"},
				Usage:   "Serve the document store used by the remote backend",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (default: docstore.host:docstore.port)",
					},
					&cli.BoolFlag{
						Name:  "memory",
						Usage: "Keep documents in memory only",
					},
				},
				Action: r.ServeDocStore,
			},
			{
				Name:  "token",
				Usage: "Issue a document store token for an owner",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "owner"},
				},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime, 0 for no expiry",
					},
				},
				Action: r.ServeToken,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing accounts and boards.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for accounts and boards",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI runs",
				Value: "./tmp/pinx-tui.log",
			},
		},
		Action: r.TUI,
	}
}
