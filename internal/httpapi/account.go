package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kalakari/storefront/internal/auth"
	"github.com/kalakari/storefront/internal/domain"
)

// caller is only used behind RequireAuth.
func caller(c *fiber.Ctx) (auth.Principal, error) {
	principal, ok := principalFrom(c)
	if !ok {
		return auth.Principal{}, domain.ErrUnauthorized
	}
	return principal, nil
}

func (h *handlers) profile(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	user, err := h.Users.Get(c.UserContext(), principal.UserID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *handlers) updateProfile(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	var in domain.ProfileInput
	if err := decode(c, &in); err != nil {
		return err
	}
	user, err := h.Users.UpdateProfile(c.UserContext(), principal.UserID, in)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *handlers) myOrders(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	orders, err := h.Orders.ByUser(c.UserContext(), principal.UserID)
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

func (h *handlers) wishlist(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	entries, err := h.Wishlists.List(c.UserContext(), principal.UserID)
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func (h *handlers) addToWishlist(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}
	entry, err := h.Wishlists.Add(c.UserContext(), principal.UserID, productID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *handlers) removeFromWishlist(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}
	removed, err := h.Wishlists.Remove(c.UserContext(), principal.UserID, productID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.NotFound("wishlist", productID)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
