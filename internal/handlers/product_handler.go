package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/thishamdi/digital-store-api/internal/services/catalog"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

type ProductHandler struct {
	Products *catalog.ProductService
}

func NewProductHandler(products *catalog.ProductService) *ProductHandler {
	return &ProductHandler{Products: products}
}

func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req catalog.ProductInput
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	p, err := h.Products.CreateProduct(c.UserContext(), req)
	if err != nil {
		return err
	}
	return utils.Created(c, "Product created successfully", p)
}

// ListProducts supports status, category, minPrice, maxPrice, platform, tag,
// page, limit and sort query parameters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	var q catalog.ProductQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}

	page, err := h.Products.ListProducts(c.UserContext(), q)
	if err != nil {
		return err
	}
	return utils.OK(c, "Products fetched successfully", page)
}

func (h *ProductHandler) GetFilters(c *fiber.Ctx) error {
	sum, err := h.Products.ProductFilters(c.UserContext(), c.Query("category"))
	if err != nil {
		return err
	}
	return utils.OK(c, "Filters fetched successfully", sum)
}

func (h *ProductHandler) GetProductBySlug(c *fiber.Ctx) error {
	p, err := h.Products.GetProductBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return utils.OK(c, "Product fetched successfully", p)
}

func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return catalog.ErrInvalidID
	}
	var req catalog.ProductPatch
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	p, err := h.Products.UpdateProduct(c.UserContext(), id, req)
	if err != nil {
		return err
	}
	return utils.OK(c, "Product updated successfully", p)
}

func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return catalog.ErrInvalidID
	}
	if err := h.Products.DeleteProduct(c.UserContext(), id); err != nil {
		return err
	}
	return utils.OK(c, "Product deleted successfully", nil)
}
