package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/store"
)

type statusRequest struct {
	Status string `json:"status"`
}

func (h *handlers) placeOrder(c *fiber.Ctx) error {
	var in domain.PlaceOrderInput
	if err := decode(c, &in); err != nil {
		return err
	}
	var userID *uuid.UUID
	if principal, ok := principalFrom(c); ok {
		userID = &principal.UserID
	}
	order, err := h.Checkout.PlaceOrder(c.UserContext(), in, userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *handlers) ordersByPhone(c *fiber.Ctx) error {
	phone := domain.NormalizePhone(c.Params("phone"))
	if phone == "" {
		return domain.Invalid("invalid phone", map[string]string{"phone": "cannot be blank"})
	}
	orders, err := h.Orders.ByCustomerPhone(c.UserContext(), phone)
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

func (h *handlers) listOrders(c *fiber.Ctx) error {
	page, err := pagination(c)
	if err != nil {
		return err
	}
	filter := store.OrderFilter{Pagination: page}
	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			return domain.Invalid("invalid query", map[string]string{"status": "must be one of pending, confirmed, delivered, cancelled"})
		}
		filter.Status = status
	}
	orders, err := h.Orders.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

func (h *handlers) getOrder(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	order, err := h.Orders.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

func (h *handlers) updateOrderStatus(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	order, err := h.Checkout.ChangeStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(order)
}
