package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thishamdi/digital-store-api/internal/services/catalog"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

type CategoryHandler struct {
	Categories *catalog.CategoryService
}

func NewCategoryHandler(categories *catalog.CategoryService) *CategoryHandler {
	return &CategoryHandler{Categories: categories}
}

func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req catalog.CategoryInput
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	cat, err := h.Categories.CreateCategory(c.UserContext(), req)
	if err != nil {
		return err
	}
	return utils.Created(c, "Category created successfully", cat)
}

func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	cats, err := h.Categories.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return utils.OK(c, "Categories fetched successfully", cats)
}

func (h *CategoryHandler) GetCategoryBySlug(c *fiber.Ctx) error {
	cat, err := h.Categories.GetCategoryBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return utils.OK(c, "Category fetched successfully", cat)
}
