package user

import (
	"backend-stridehub/internal/apperr"
	"backend-stridehub/internal/pagination"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		u, err := svc.Get(c.Context(), userID)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(u)
	})

	r.Put("/me/privacy", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			IsPublic         *bool `json:"is_public"`
			IsLocationPublic *bool `json:"is_location_public"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID, _ := c.Locals("user_id").(string)
		u, err := svc.UpdatePrivacy(c.Context(), userID, body.IsPublic, body.IsLocationPublic)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(u)
	})

	r.Put("/me/location", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID, _ := c.Locals("user_id").(string)
		u, err := svc.UpdateLocation(c.Context(), userID, body.Lat, body.Lng)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(u)
	})

	r.Get("/nearby", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		lat := c.QueryFloat("lat")
		lng := c.QueryFloat("lng")
		radius := c.QueryFloat("radius_km", 5)
		results, err := svc.Nearby(c.Context(), userID, lat, lng, radius)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{"users": results})
	})

	r.Get("/leaderboard", func(c *fiber.Ctx) error {
		page := pagination.Page{
			Cursor: c.Query("cursor"),
			Limit:  c.QueryInt("limit"),
		}
		entries, next, err := svc.Leaderboard(c.Context(), page)
		if err != nil {
			return apperr.HTTPError(err)
		}
		return c.JSON(fiber.Map{
			"entries":     entries,
			"next_cursor": next,
		})
	})
}
