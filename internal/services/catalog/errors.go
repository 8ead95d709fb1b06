package catalog

import "github.com/thishamdi/digital-store-api/internal/apperr"

var (
	ErrCategoryExists   = apperr.Conflict("Category with this name already exists")
	ErrCategoryNotFound = apperr.NotFound("Category not found")
	ErrParentNotFound   = apperr.BadRequest("Parent category not found")
	ErrProductExists    = apperr.Conflict("Product with this title already exists")
	ErrProductNotFound  = apperr.NotFound("Product not found")
	ErrUnknownVariant   = apperr.BadRequest("Variant does not belong to this product")
	ErrInvalidPrice     = apperr.BadRequest("pricing.basePrice must be at least 0.01")
	ErrNegativePrice    = apperr.BadRequest("variant price must not be negative")
	ErrInvalidID        = apperr.BadRequest("Invalid id")
	ErrCategoryNameSlug = apperr.BadRequest("name must contain letters or digits")
	ErrProductTitleSlug = apperr.BadRequest("title must contain letters or digits")
	ErrUnknownCategory  = apperr.BadRequest("Category does not exist")
	ErrDropdownOptions  = apperr.BadRequest("dropdown fields need at least one option")
	ErrInvalidPriceQ    = apperr.BadRequest("minPrice and maxPrice must be numbers")
)
