package achievement

import (
	"backend-stridehub/internal/apperr"
	"backend-stridehub/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		items, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"achievements": items})
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Achievement
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		created, err := svc.Create(c.Context(), req)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		page := pagination.Page{
			Cursor: c.Query("cursor"),
			Limit:  c.QueryInt("limit"),
		}
		items, next, err := svc.ForUser(c.Context(), userID, page)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{
			"achievements": items,
			"next_cursor":  next,
		})
	})
}
