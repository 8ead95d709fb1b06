package order

import (
	"net/http"

	"github.com/thishamdi/digital-store-api/internal/apperr"
)

var (
	ErrInvalidVariant = apperr.BadRequest("Invalid product variant")
	ErrOrderNotFound  = apperr.NotFound("Order not found")
	ErrInvalidStatus  = apperr.BadRequest("Invalid order status")
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string   { return e.Message }
func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }

// OutOfStockError names the product by title, or by id when the product
// does not exist.
type OutOfStockError struct {
	Product string
}

func (e *OutOfStockError) Error() string   { return "Insufficient stock for " + e.Product }
func (e *OutOfStockError) HTTPStatus() int { return http.StatusBadRequest }

type MissingCustomerFieldError struct {
	Field string
}

func (e *MissingCustomerFieldError) Error() string   { return e.Field + " is required" }
func (e *MissingCustomerFieldError) HTTPStatus() int { return http.StatusBadRequest }
