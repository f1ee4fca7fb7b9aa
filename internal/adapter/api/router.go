package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

type HealthInfo struct {
	Version string
	Env     string
}

func SetupRouter(app *fiber.App, handler *ProcurementHandler, health HealthInfo) {
	// Middleware
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"version": health.Version,
			"env":     health.Env,
		})
	})

	v1 := app.Group("/v1")

	v1.Post("/vendors", handler.CreateVendor)
	v1.Get("/vendors", handler.ListVendors)

	v1.Post("/requests", handler.CreateRequest)
	v1.Get("/requests", handler.ListRequests)
	v1.Get("/requests/:id", handler.GetRequest)
	v1.Post("/requests/:id/send", handler.SendRequest)
	v1.Get("/requests/:id/proposals", handler.CompareProposals)
	v1.Get("/requests/:id/proposals/export", handler.ExportProposals)

	v1.Post("/proposals/receive", handler.ReceiveProposal)

	v1.Post("/mailbox/scan", handler.ScanMailbox)
	v1.Get("/replies/search", handler.SearchReplies)
}
