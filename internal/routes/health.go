package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes wires liveness endpoints used by orchestration.
func RegisterHealthRoutes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}
