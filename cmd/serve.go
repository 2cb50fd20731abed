package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"moarnews/config"
	"moarnews/db"
	"moarnews/feeds"
	"moarnews/fetch"
	"moarnews/refresh"
	"moarnews/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the aggregated feeds",
		Description: `Starts the HTTP server and the background refresh scheduler.

Loads the feed list from the TOML configuration, runs database migrations,
then refreshes all feeds immediately and on the configured interval. The
item history is served as JSON with stable offset/limit pagination.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"MOARNEWS_PORT"},
			},
			&cli.IntFlag{
				Name:    "refresh-interval",
				Usage:   "Minutes between refresh cycles, overrides the config file",
				EnvVars: []string{"MOARNEWS_REFRESH_INTERVAL"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Value:   refresh.DefaultWorkers,
				Usage:   "Concurrent feed fetches per cycle",
				EnvVars: []string{"MOARNEWS_WORKERS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			resolved, err := feeds.Resolve(cfg.Feeds)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"feeds": len(resolved),
			}).Info("Loaded feed configuration")

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}

			store, err := db.NewStore(database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			if err := store.SyncFeeds(ctx.Context, resolved); err != nil {
				return fmt.Errorf("sync feeds: %w", err)
			}

			interval := cfg.RefreshInterval
			if ctx.Int("refresh-interval") > 0 {
				interval = ctx.Int("refresh-interval")
			}

			client := fetch.NewClient(time.Duration(cfg.FetchTimeout) * time.Second)
			coordinator := refresh.NewCoordinator(client, store, resolved, ctx.Int("workers"), cfg.MaxItemsPerFeed)
			scheduler := refresh.NewScheduler(coordinator, time.Duration(interval)*time.Minute)

			app := server.Server(&server.ServerConfig{
				Store:       store,
				Coordinator: coordinator,
			})

			schedulerCtx, stopScheduler := context.WithCancel(ctx.Context)
			defer stopScheduler()
			go scheduler.Run(schedulerCtx)

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt)
			go func() {
				<-c
				log.Info("Gracefully shutting down...")
				stopScheduler()
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.Error("Error shutting down server: ", err)
				}
			}()

			log.WithFields(log.Fields{
				"port": ctx.Int("port"),
			}).Info("Starting server")

			return app.Listen(fmt.Sprintf(":%d", ctx.Int("port")))
		},
	}
}
