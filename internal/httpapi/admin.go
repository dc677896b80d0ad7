package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kalakari/storefront/internal/domain"
)

type stockRequest struct {
	Stock *int `json:"stock"`
}

func (h *handlers) adminListProducts(c *fiber.Ctx) error {
	filter, err := productFilter(c, true)
	if err != nil {
		return err
	}
	page, err := h.Products.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *handlers) adminGetProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	product, err := h.Products.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *handlers) productStats(c *fiber.Ctx) error {
	stats, err := h.Products.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *handlers) createProduct(c *fiber.Ctx) error {
	var in domain.ProductInput
	if err := decode(c, &in); err != nil {
		return err
	}
	product, err := h.Products.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *handlers) updateProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var patch domain.ProductPatch
	if err := decode(c, &patch); err != nil {
		return err
	}
	product, err := h.Products.Update(c.UserContext(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *handlers) setStock(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req stockRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if req.Stock == nil {
		return domain.Invalid("invalid stock", map[string]string{"stock": "cannot be blank"})
	}
	product, err := h.Products.SetStock(c.UserContext(), id, *req.Stock)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *handlers) deactivateProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	product, err := h.Products.Deactivate(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *handlers) restoreProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	product, err := h.Products.Restore(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// importProducts takes the CSV as the multipart field "file".
func (h *handlers) importProducts(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return domain.Invalid("missing file", map[string]string{"file": "a CSV file is required"})
	}
	file, err := header.Open()
	if err != nil {
		return domain.Internal(fmt.Errorf("open csv upload: %w", err), "failed to read file")
	}
	defer file.Close()

	report, err := h.Importer.Import(c.UserContext(), file)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *handlers) exportProducts(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.Importer.Export(c.UserContext(), &buf); err != nil {
		return err
	}
	c.Attachment(fmt.Sprintf("products-%s.csv", time.Now().UTC().Format("20060102")))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

func (h *handlers) adminListCategories(c *fiber.Ctx) error {
	categories, err := h.Categories.List(c.UserContext(), false)
	if err != nil {
		return err
	}
	return c.JSON(categories)
}

func (h *handlers) createCategory(c *fiber.Ctx) error {
	var in domain.CategoryInput
	if err := decode(c, &in); err != nil {
		return err
	}
	category, err := h.Categories.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *handlers) updateCategory(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var in domain.CategoryInput
	if err := decode(c, &in); err != nil {
		return err
	}
	category, err := h.Categories.Update(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(category)
}

// deleteCategory refuses while products still reference the category.
func (h *handlers) deleteCategory(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	deleted, err := h.Categories.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrCategoryInUse
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) listUsers(c *fiber.Ctx) error {
	page, err := pagination(c)
	if err != nil {
		return err
	}
	users, err := h.Users.List(c.UserContext(), page)
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// upload takes the image as the multipart field "image".
func (h *handlers) upload(c *fiber.Ctx) error {
	header, err := c.FormFile("image")
	if err != nil {
		return domain.Invalid("missing image", map[string]string{"image": "an image file is required"})
	}
	file, err := header.Open()
	if err != nil {
		return domain.Internal(fmt.Errorf("open image upload: %w", err), "failed to read image")
	}
	defer file.Close()

	stored, err := h.Media.Save(c.UserContext(), file, header.Size)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}
