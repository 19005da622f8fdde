package export

import (
	"errors"
	"os"
	"path/filepath"

	"backend-mtbtrainer/internal/sensor"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes serves the export directory: listing, download, upload of
// an export document and deletion.
func RegisterRoutes(r fiber.Router, w *Writer, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		files, err := w.List()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if files == nil {
			files = []File{}
		}
		return c.JSON(files)
	})

	r.Get("/:name", func(c *fiber.Ctx) error {
		name := c.Params("name")
		if err := checkName(name); err != nil {
			return writerError(err)
		}
		format, ok := formatOf(name)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
		}
		data, err := os.ReadFile(filepath.Join(w.Dir(), name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Attachment(name)
		c.Set(fiber.HeaderContentType, format.ContentType())
		return c.Send(data)
	})

	r.Post("/:name", authMiddleware, func(c *fiber.Ctx) error {
		samples, err := sensor.DecodeAll(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		name, err := w.Write(c.Params("name"), samples)
		if err != nil {
			return writerError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"name": name, "events": len(samples)})
	})

	r.Delete("/:name", authMiddleware, func(c *fiber.Ctx) error {
		if err := w.Delete(c.Params("name")); err != nil {
			return writerError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func writerError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrUnknownFormat):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
