package cmd

import (
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "moarnews",
		Usage: "A self-hosted RSS/Atom aggregator",
		Description: `Polls a configured set of RSS and Atom feeds on a schedule,
		deduplicates their items against previously seen content and serves a
		stable, paginated per-feed history over HTTP.

		Feeds are configured in a TOML file. Aggregator-style feeds such as
		Hacker News or Lobste.rs can be marked has_discussion to keep the
		story link and the comments link apart.

		Flags can generally be set via environment variables, e.g.:

		--database => MOARNEWS_DATABASE=news.db
		--port => MOARNEWS_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "news.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"MOARNEWS_DATABASE"},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "feeds.toml",
		Usage:   "Path to feeds configuration file",
		EnvVars: []string{"MOARNEWS_CONFIG"},
	}
}
