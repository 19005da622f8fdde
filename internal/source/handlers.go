package source

import (
	"backend-mtbtrainer/internal/sensor"

	"github.com/gofiber/fiber/v2"
)

type IngestResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// RegisterIngest accepts one tagged sample or an array of them and offers
// them to the device push source.
func RegisterIngest(r fiber.Router, device *Push, authMiddleware fiber.Handler) {
	r.Post("/ingest", authMiddleware, func(c *fiber.Ctx) error {
		samples, err := sensor.DecodeBatch(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !device.Subscribed() {
			return fiber.NewError(fiber.StatusConflict, "not collecting")
		}

		var res IngestResult
		for _, s := range samples {
			if device.Offer(s) {
				res.Accepted++
			} else {
				res.Dropped++
			}
		}
		return c.Status(fiber.StatusAccepted).JSON(res)
	})
}
