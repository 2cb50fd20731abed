package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"moarnews/db"
	"moarnews/models"
	"moarnews/refresh"
)

const (
	// DefaultPageSize is the dashboard page size
	DefaultPageSize = 15
	maxPageSize     = 100
)

type ServerConfig struct {

	// The store to read feeds and items from
	Store *db.Store

	// The coordinator serving manual refresh triggers and status reads
	Coordinator *refresh.Coordinator

	// Items per page on the dashboard
	PageSize int
}

// FeedWithItems is one dashboard entry: the feed plus its first page.
type FeedWithItems struct {
	Feed    models.Feed   `json:"feed"`
	Items   []models.Item `json:"items"`
	Total   int64         `json:"total"`
	HasMore bool          `json:"hasMore"`
}

// ItemPage is one incremental "load more" slice of a feed's history.
type ItemPage struct {
	Items      []models.Item `json:"items"`
	Offset     int           `json:"offset"`
	NextOffset int           `json:"nextOffset"`
	HasMore    bool          `json:"hasMore"`
}

// Returns a fiber.App instance to be used as the HTTP server for moarnews
func Server(config *ServerConfig) *fiber.App {
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	// Liveness probe; answerable without touching the store or network
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Dashboard data: every feed with its first page of items
	app.Get("/api/feeds", func(c *fiber.Ctx) error {
		feeds, err := config.Store.GetFeeds(c.Context())
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error getting feeds")
			return c.Status(fiber.StatusInternalServerError).SendString("Error getting feeds")
		}

		dashboard := make([]FeedWithItems, 0, len(feeds))
		for _, feed := range feeds {
			items, err := config.Store.GetPage(c.Context(), feed.ID, 0, pageSize)
			if err != nil {
				log.WithFields(log.Fields{
					"feed":  feed.ID,
					"error": err,
				}).Error("Error getting feed items")
				return c.Status(fiber.StatusInternalServerError).SendString("Error getting feed items")
			}
			total, err := config.Store.CountItems(c.Context(), feed.ID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Error counting feed items")
			}

			dashboard = append(dashboard, FeedWithItems{
				Feed:    feed,
				Items:   items,
				Total:   total,
				HasMore: total > int64(pageSize),
			})
		}

		return c.JSON(dashboard)
	})

	// Incremental page for one feed
	app.Get("/api/feeds/:id/items", func(c *fiber.Ctx) error {
		feedID := c.Params("id")

		feed, err := config.Store.GetFeed(c.Context(), feedID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error getting feed")
		}
		if feed == nil {
			return c.Status(fiber.StatusNotFound).SendString("Unknown feed")
		}

		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			offset = 0
		}
		limit := c.QueryInt("limit", pageSize)
		if limit < 1 || limit > maxPageSize {
			limit = pageSize
		}

		items, err := config.Store.GetPage(c.Context(), feedID, offset, limit)
		if err != nil {
			log.WithFields(log.Fields{
				"feed":  feedID,
				"error": err,
			}).Error("Error getting feed items")
			return c.Status(fiber.StatusInternalServerError).SendString("Error getting feed items")
		}
		total, err := config.Store.CountItems(c.Context(), feedID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error counting feed items")
		}

		return c.JSON(ItemPage{
			Items:      items,
			Offset:     offset,
			NextOffset: offset + len(items),
			HasMore:    int64(offset+len(items)) < total,
		})
	})

	// Manual refresh: same entry point and single-flight guard as the
	// scheduler. Responds immediately; the cycle runs in the background.
	app.Post("/api/refresh", func(c *fiber.Ctx) error {
		// The cycle outlives the request, so it gets its own context
		if err := config.Coordinator.Trigger(context.Background()); err != nil {
			if errors.Is(err, refresh.ErrAlreadyRunning) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"status": "already_running",
				})
			}
			return c.Status(fiber.StatusInternalServerError).SendString("Error starting refresh")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "started",
		})
	})

	app.Get("/api/refresh/status", func(c *fiber.Ctx) error {
		return c.JSON(config.Coordinator.Status())
	})

	return app
}
