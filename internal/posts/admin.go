package posts

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RegisterAdminRoutes mounts group management behind adminOnly.
func RegisterAdminRoutes(r fiber.Router, svc *Service, adminOnly fiber.Handler) {
	r.Get("/groups/", adminOnly, func(c *fiber.Ctx) error {
		groups, err := svc.Groups(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"groups": groups})
	})

	r.Post("/groups/", adminOnly, func(c *fiber.Ctx) error {
		var form GroupForm
		if err := c.BodyParser(&form); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		group, err := svc.CreateGroup(c.UserContext(), form)
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"form": form, "errors": verr.Fields})
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(group)
	})

	r.Delete("/groups/:slug/", adminOnly, func(c *fiber.Ctx) error {
		if err := svc.DeleteGroup(c.UserContext(), c.Params("slug")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
