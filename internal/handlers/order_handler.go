package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thishamdi/digital-store-api/internal/cache"
	"github.com/thishamdi/digital-store-api/internal/logger"
	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/services/order"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

const orderCacheTTL = 30 * time.Second

type OrderHandler struct {
	Orders *order.OrderService
	Cache  *cache.Cache
}

func NewOrderHandler(orders *order.OrderService, c *cache.Cache) *OrderHandler {
	return &OrderHandler{Orders: orders, Cache: c}
}

type createOrderReq struct {
	Items []order.CartItem `json:"items"`
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderReq
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	o, err := h.Orders.CreateOrder(c.UserContext(), req.Items)
	if err != nil {
		return err
	}
	return utils.Created(c, "Order created successfully", fiber.Map{
		"orderCode":   o.OrderCode,
		"totalAmount": o.TotalAmount,
	})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	code := c.Params("code")
	ctx := c.UserContext()

	var cached models.Order
	if h.Cache.Get(ctx, cacheKey(code), &cached) {
		return utils.OK(c, "Order fetched successfully", cached)
	}

	o, err := h.Orders.GetOrderByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := h.Cache.Set(ctx, cacheKey(o.OrderCode), o, orderCacheTTL); err != nil {
		logger.WithCtx(ctx).Warn("order cache set failed", "order_code", o.OrderCode, "error", err)
	}
	return utils.OK(c, "Order fetched successfully", o)
}

type updateOrderReq struct {
	Status        models.OrderStatus `json:"status"`
	AdminComments *string            `json:"adminComments"`
}

func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	var req updateOrderReq
	if err := c.BodyParser(&req); err != nil {
		return errBadBody
	}

	ctx := c.UserContext()
	o, err := h.Orders.UpdateOrderByCode(ctx, c.Params("code"), req.Status, req.AdminComments)
	if err != nil {
		return err
	}
	if err := h.Cache.Del(ctx, cacheKey(o.OrderCode)); err != nil {
		logger.WithCtx(ctx).Warn("order cache invalidation failed", "order_code", o.OrderCode, "error", err)
	}
	return utils.OK(c, "Order updated successfully", o)
}

func cacheKey(code string) string {
	return order.NormalizeCode(code)
}
