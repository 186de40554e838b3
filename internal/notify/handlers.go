package notify

import (
	"backend-stridehub/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, e *Emitter, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		page := pagination.Page{
			Cursor: c.Query("cursor"),
			Limit:  c.QueryInt("limit"),
		}
		items, next, err := e.List(c.Context(), userID, page)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"notifications": items,
			"next_cursor":   next,
		})
	})
}
