package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"moarnews/config"
	"moarnews/db"
	"moarnews/feeds"
	"moarnews/fetch"
	"moarnews/refresh"
)

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Run a single refresh cycle and exit",
		Description: `Fetches all configured feeds once, ingests new items and prints
the per-feed outcome as JSON objects, one per line.

Can be run from cron instead of the built-in scheduler if you prefer
external scheduling. Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "workers",
				Value:   refresh.DefaultWorkers,
				Usage:   "Concurrent feed fetches",
				EnvVars: []string{"MOARNEWS_WORKERS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the outcome JSON
			log.SetOutput(os.Stderr)

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			resolved, err := feeds.Resolve(cfg.Feeds)
			if err != nil {
				return err
			}

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return err
			}

			store, err := db.NewStore(database)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SyncFeeds(ctx.Context, resolved); err != nil {
				return err
			}

			client := fetch.NewClient(time.Duration(cfg.FetchTimeout) * time.Second)
			coordinator := refresh.NewCoordinator(client, store, resolved, ctx.Int("workers"), cfg.MaxItemsPerFeed)

			status, err := coordinator.RunCycle(ctx.Context)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(status.Outcomes))
			for id := range status.Outcomes {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			for _, id := range ids {
				line, err := json.Marshal(status.Outcomes[id])
				if err != nil {
					continue
				}
				fmt.Println(string(line))
			}

			return nil
		},
	}
}
