package httpapi

import "github.com/gofiber/fiber/v2"

func (h *handlers) dashboard(c *fiber.Ctx) error {
	r, err := analyticsRange(c)
	if err != nil {
		return err
	}
	report, err := h.Analytics.Dashboard(c.UserContext(), r)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *handlers) sales(c *fiber.Ctx) error {
	r, err := analyticsRange(c)
	if err != nil {
		return err
	}
	interval, err := intervalQuery(c)
	if err != nil {
		return err
	}
	buckets, err := h.Analytics.Sales(c.UserContext(), r, interval)
	if err != nil {
		return err
	}
	return c.JSON(buckets)
}

func (h *handlers) revenue(c *fiber.Ctx) error {
	r, err := analyticsRange(c)
	if err != nil {
		return err
	}
	report, err := h.Analytics.Revenue(c.UserContext(), r)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *handlers) topProducts(c *fiber.Ctx) error {
	r, err := analyticsRange(c)
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	top, err := h.Analytics.TopProducts(c.UserContext(), r, limit)
	if err != nil {
		return err
	}
	return c.JSON(top)
}

func (h *handlers) inventory(c *fiber.Ctx) error {
	report, err := h.Analytics.Inventory(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *handlers) customers(c *fiber.Ctx) error {
	r, err := analyticsRange(c)
	if err != nil {
		return err
	}
	report, err := h.Analytics.Customers(c.UserContext(), r)
	if err != nil {
		return err
	}
	return c.JSON(report)
}
