package run

import (
	"backend-stridehub/internal/apperr"
	"backend-stridehub/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			RouteID  string           `json:"route_id"`
			Location *CoordinateInput `json:"location"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID, _ := c.Locals("user_id").(string)
		started, err := svc.Start(c.Context(), userID, body.RouteID, body.Location)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(started)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		page := pagination.Page{Cursor: c.Query("cursor"), Limit: c.QueryInt("limit")}
		runs, next, err := svc.History(c.Context(), userID, page)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{"runs": runs, "next_cursor": next})
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		loaded, err := svc.Get(c.Context(), c.Params("id"), userID)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(loaded)
	})

	r.Post("/:id/coordinates", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Coordinates []CoordinateInput `json:"coordinates"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID, _ := c.Locals("user_id").(string)
		points, err := svc.AddCoordinates(c.Context(), c.Params("id"), userID, body.Coordinates)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"coordinates": points})
	})

	r.Get("/:id/coordinates", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		page := pagination.Page{Cursor: c.Query("cursor"), Limit: c.QueryInt("limit")}
		points, next, err := svc.Coordinates(c.Context(), c.Params("id"), userID, page)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{"coordinates": points, "next_cursor": next})
	})

	r.Post("/:id/pause", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		paused, err := svc.Pause(c.Context(), c.Params("id"), userID)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(paused)
	})

	r.Post("/:id/resume", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		resumed, err := svc.Resume(c.Context(), c.Params("id"), userID)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(resumed)
	})

	r.Post("/:id/complete", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Metrics CompletionMetrics `json:"metrics"`
			Splits  []Split           `json:"splits"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID, _ := c.Locals("user_id").(string)
		completed, unlocks, err := svc.Complete(c.Context(), c.Params("id"), userID, body.Metrics, body.Splits)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{"run": completed, "unlocked_achievements": unlocks})
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if err := svc.Delete(c.Context(), c.Params("id"), userID); err != nil {
			return apperr.HTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:id/splits", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		splits, err := svc.Splits(c.Context(), c.Params("id"), userID)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{"splits": splits})
	})

	r.Post("/:id/photos", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			URL     string `json:"url"`
			Caption string `json:"caption"`
		}
		if err := c.BodyParser(&body); err != nil || body.URL == "" {
			return fiber.NewError(fiber.StatusBadRequest, "url required")
		}
		userID, _ := c.Locals("user_id").(string)
		photo, err := svc.AddPhoto(c.Context(), c.Params("id"), userID, body.URL, body.Caption)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(photo)
	})

	r.Get("/:id/photos", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		photos, err := svc.Photos(c.Context(), c.Params("id"), userID)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{"photos": photos})
	})
}
