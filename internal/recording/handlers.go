package recording

import (
	"errors"
	"strings"

	"backend-mtbtrainer/internal/auth"
	"backend-mtbtrainer/internal/export"
	"backend-mtbtrainer/internal/sensor"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/sessions", func(c *fiber.Ctx) error {
		sessions, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(sessions)
	})

	// body is an export file: a JSON array of tagged samples
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		events, err := sensor.DecodeAll(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(events) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "no events")
		}
		name := c.Query("file_name")
		if name == "" {
			name = "upload.json"
		}
		sum, err := svc.Save(c.Context(), Recording{
			RiderID:  auth.RiderID(c),
			FileName: name,
			Events:   events,
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(sum)
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		sum, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(err)
		}
		return c.JSON(sum)
	})

	r.Get("/sessions/:id/export", func(c *fiber.Ctx) error {
		format, err := export.ParseFormat(c.Query("format"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		sum, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(err)
		}
		events, err := svc.Events(c.Context(), sum.ID)
		if err != nil {
			return serviceError(err)
		}
		data, err := export.Encode(format, events)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		base := strings.TrimSuffix(sum.FileName, ".json")
		c.Attachment(base + format.Ext())
		c.Set(fiber.HeaderContentType, format.ContentType())
		return c.Send(data)
	})

	r.Delete("/sessions/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return serviceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func serviceError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
