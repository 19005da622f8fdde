package collection

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes exposes the lifecycle commands. A session outlives the
// request that started it and ends with Stop.
func RegisterRoutes(r fiber.Router, ctrl *Controller, authMiddleware fiber.Handler) {
	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		started := ctrl.Start(context.Background())
		return c.JSON(fiber.Map{"started": started, "state": ctrl.Snapshot()})
	})

	r.Post("/stop", authMiddleware, func(c *fiber.Ctx) error {
		stopped := ctrl.Stop()
		return c.JSON(fiber.Map{"stopped": stopped, "state": ctrl.Snapshot()})
	})

	r.Post("/reset", authMiddleware, func(c *fiber.Ctx) error {
		ctrl.ResetMax()
		return c.JSON(ctrl.Snapshot())
	})

	r.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(ctrl.Snapshot())
	})
}
