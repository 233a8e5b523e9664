package handlers

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"protocol-backend/logging"
	"protocol-backend/middleware"
	"protocol-backend/models"
	"protocol-backend/services"
	"protocol-backend/utils"
)

// ObjectStore receives uploaded cover images.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

const maxCoverSize = 10 * 1024 * 1024

func SetupTimelineRoutes(app fiber.Router, timelines *services.TimelineService, store ObjectStore, log *zap.Logger) {
	log = logging.OrNop(log)

	// 🔓 Player listing, gateway auth only
	app.Get("/timelines/open", func(c *fiber.Ctx) error {
		open, err := timelines.ListOpen(c.UserContext())
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"timelines": open})
	})

	// 🔐 Admin
	admin := app.Group("/admin/timelines",
		middleware.UserContextMiddleware(log),
		middleware.RequireRoles("ADMIN", "FOUNDER"))

	admin.Post("/", func(c *fiber.Ctx) error {
		var in services.CreateTimelineInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		tl, err := timelines.Create(c.UserContext(), in)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tl)
	})

	admin.Get("/", func(c *fiber.Ctx) error {
		var filter services.ListFilter
		if raw := c.Query("status"); raw != "" {
			status, err := models.ParseTimelineStatus(raw)
			if err != nil {
				return badRequest(c, err.Error())
			}
			filter.Status = status
		}
		list, err := timelines.List(c.UserContext(), filter)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"timelines": list})
	})

	admin.Get("/:id", func(c *fiber.Ctx) error {
		tl, err := timelines.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(tl)
	})

	admin.Put("/:id", func(c *fiber.Ctx) error {
		var in services.UpdateTimelineInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		tl, err := timelines.Update(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(tl)
	})

	admin.Delete("/:id", func(c *fiber.Ctx) error {
		if err := timelines.Delete(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Post("/:id/publish", func(c *fiber.Ctx) error {
		tl, err := timelines.Publish(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(tl)
	})

	admin.Post("/:id/cover", func(c *fiber.Ctx) error {
		if store == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "object storage not configured"})
		}
		fh, err := c.FormFile("cover")
		if err != nil {
			return badRequest(c, "cover is required")
		}
		if fh.Size > maxCoverSize {
			return badRequest(c, "file too large (max 10MB)")
		}

		tl, err := timelines.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}

		file, err := fh.Open()
		if err != nil {
			return badRequest(c, "failed to read cover")
		}
		defer file.Close()

		url, err := store.Upload(c.UserContext(), utils.CoverKey(tl.TimelineID, fh.Filename), file, fh.Header.Get(fiber.HeaderContentType))
		if err != nil {
			return respondError(c, log, err)
		}
		if err := timelines.SetCoverImage(c.UserContext(), tl.ID, url); err != nil {
			return respondError(c, log, err)
		}
		log.Info("🖼️ Cover uploaded", zap.String("timeline_id", tl.TimelineID), zap.String("url", url))
		return c.JSON(fiber.Map{"coverImageUrl": url})
	})
}
