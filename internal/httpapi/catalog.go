package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kalakari/storefront/internal/domain"
)

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

func (h *handlers) register(c *fiber.Ctx) error {
	var in domain.RegisterInput
	if err := decode(c, &in); err != nil {
		return err
	}
	user, err := h.Users.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return h.issue(c, fiber.StatusCreated, user)
}

func (h *handlers) login(c *fiber.Ctx) error {
	var in domain.LoginInput
	if err := decode(c, &in); err != nil {
		return err
	}
	user, err := h.Users.Authenticate(c.UserContext(), in)
	if err != nil {
		return err
	}
	return h.issue(c, fiber.StatusOK, user)
}

func (h *handlers) issue(c *fiber.Ctx, status int, user *domain.User) error {
	token, expires, err := h.Tokens.Issue(user)
	if err != nil {
		return domain.Internal(err, "failed to issue token")
	}
	return c.Status(status).JSON(AuthResponse{Token: token, ExpiresAt: expires, User: user})
}

func (h *handlers) listCategories(c *fiber.Ctx) error {
	categories, err := h.Categories.List(c.UserContext(), true)
	if err != nil {
		return err
	}
	return c.JSON(categories)
}

func (h *handlers) categoryBySlug(c *fiber.Ctx) error {
	category, err := h.Categories.BySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(category)
}

func (h *handlers) listProducts(c *fiber.Ctx) error {
	filter, err := productFilter(c, false)
	if err != nil {
		return err
	}
	page, err := h.Products.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// getProduct hides soft deleted products from the storefront.
func (h *handlers) getProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	product, err := h.Products.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !product.Status.IsActive() {
		return domain.NotFound("product", id)
	}
	return c.JSON(product)
}
