package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"moarnews/config"
	"moarnews/db"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by pruning every feed down to the
		configured retention cap, removing the oldest items first.

		The serve command prunes incrementally after each refresh; this
		command is for catching up after lowering the cap.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "max-items",
				Usage:   "Per-feed retention cap, overrides the config file",
				EnvVars: []string{"MOARNEWS_MAX_ITEMS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			max := cfg.MaxItemsPerFeed
			if ctx.Int("max-items") > 0 {
				max = ctx.Int("max-items")
			}

			database := ctx.String("database")
			fmt.Println("Database configured: ", database)
			return db.Tidy(database, max)
		},
	}
}
