package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thishamdi/digital-store-api/internal/logger"
	"github.com/thishamdi/digital-store-api/internal/metrics"
	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/services/events"
	"github.com/thishamdi/digital-store-api/internal/services/inventory"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

const maxCodeAttempts = 5

type CartItem struct {
	ProductID    uuid.UUID       `json:"productId"`
	VariantID    uuid.UUID       `json:"variantId"`
	Quantity     int             `json:"quantity"`
	CustomerData models.FieldMap `json:"customerData"`
}

type OrderService struct {
	DB        *gorm.DB
	Inventory *inventory.InventoryService
	Publisher events.Publisher

	// overridable in tests
	NewCode func() (string, error)
	Now     func() time.Time
}

func NewOrderService(db *gorm.DB, pub events.Publisher) *OrderService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &OrderService{
		DB:        db,
		Inventory: inventory.NewInventoryService(db),
		Publisher: pub,
		NewCode:   utils.GenerateOrderCode,
		Now:       time.Now,
	}
}

// CreateOrder prices the cart against live inventory, takes the stock and
// stores a pending order, all in one transaction. Either everything commits
// or nothing does.
func (s *OrderService) CreateOrder(ctx context.Context, items []CartItem) (*models.Order, error) {
	if err := validateCart(items); err != nil {
		s.reject(err)
		return nil, err
	}

	var order *models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.Inventory.LockProducts(tx, productIDs(items))
		if err != nil {
			return err
		}

		remaining := make(map[uuid.UUID]int, len(products))
		for id, p := range products {
			remaining[id] = p.Stock
		}

		total := decimal.Zero
		lines := make([]models.OrderItem, 0, len(items))
		for i, item := range items {
			p, ok := products[item.ProductID]
			if !ok {
				return &OutOfStockError{Product: item.ProductID.String()}
			}
			if remaining[p.ID] < item.Quantity {
				return &OutOfStockError{Product: p.Title}
			}

			v := p.Variant(item.VariantID)
			if v == nil {
				return ErrInvalidVariant
			}

			data, err := requiredCustomerData(p.RequiredCustomerData, item.CustomerData)
			if err != nil {
				return err
			}

			line := models.OrderItem{
				Position:  i,
				ProductID: p.ID,
				Variant: models.VariantSnapshot{
					VariantID:     v.ID,
					Duration:      v.Duration,
					Price:         v.Price,
					OriginalPrice: v.OriginalPrice,
				},
				Quantity:     item.Quantity,
				CustomerData: datatypes.NewJSONType(data),
			}
			total = total.Add(line.Subtotal())

			if err := s.Inventory.DebitStock(tx, p.ID, item.Quantity); err != nil {
				if errors.Is(err, inventory.ErrInsufficientStock) {
					return &OutOfStockError{Product: p.Title}
				}
				return fmt.Errorf("debit stock: %w", err)
			}
			remaining[p.ID] -= item.Quantity

			lines = append(lines, line)
		}

		now := s.Now().UTC()
		order = &models.Order{
			Items:         lines,
			Status:        models.OrderPending,
			StatusHistory: datatypes.JSONSlice[models.StatusEntry]{{Status: models.OrderPending, Timestamp: now}},
			TotalAmount:   total,
		}
		return s.insertWithCode(tx, order)
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	logger.WithCtx(ctx).Info("order created",
		"order_code", order.OrderCode,
		"items", len(order.Items),
		"total", order.TotalAmount.StringFixed(2),
	)
	s.publish(ctx, events.OrderCreated, order)

	return order, nil
}

// insertWithCode stores the order under a fresh code. Each attempt runs in
// a savepoint so a unique violation on order_code only undoes the insert.
func (s *OrderService) insertWithCode(tx *gorm.DB, order *models.Order) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.NewCode()
		if err != nil {
			return err
		}
		order.OrderCode = code

		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(order).Error
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("insert order: %w", err)
		}
		logger.L.Warn("order code collision", "order_code", code, "attempt", attempt)
	}
	return fmt.Errorf("insert order: no unique order code after %d attempts", maxCodeAttempts)
}

// GetOrderByCode loads an order with its items and a summary of each
// product. Items of deleted products keep their snapshot and have no
// product attached.
func (s *OrderService) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	var o models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "slug",
				"pricing_base_price", "pricing_sale_price", "pricing_currency", "pricing_discount_percentage")
		}).
		Preload("Items.Product.Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("order_code = ?", NormalizeCode(code)).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderByCode sets the status and appends it to the history. Any
// known status may follow any other. A nil comments leaves the stored
// comments untouched.
func (s *OrderService) UpdateOrderByCode(ctx context.Context, code string, status models.OrderStatus, comments *string) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("order_code = ?", NormalizeCode(code)).
			First(&o).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		history := append(o.StatusHistory, models.StatusEntry{Status: status, Timestamp: s.Now().UTC()})
		updates := map[string]any{
			"status":         status,
			"status_history": history,
		}
		if comments != nil {
			updates["admin_comments"] = *comments
		}
		return tx.Model(&o).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	o, err := s.GetOrderByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("order updated", "order_code", o.OrderCode, "status", o.Status)
	s.publish(ctx, events.OrderUpdated, o)
	return o, nil
}

func (s *OrderService) publish(ctx context.Context, key string, o *models.Order) {
	if err := s.Publisher.Publish(context.WithoutCancel(ctx), key, o); err != nil {
		logger.WithCtx(ctx).Error("publish order event", "routing_key", key, "order_code", o.OrderCode, "error", err)
	}
}

func (s *OrderService) reject(err error) {
	var (
		oos     *OutOfStockError
		missing *MissingCustomerFieldError
		invalid *ValidationError
	)
	switch {
	case errors.As(err, &oos):
		metrics.OrderRejections.WithLabelValues("out_of_stock").Inc()
	case errors.Is(err, ErrInvalidVariant):
		metrics.OrderRejections.WithLabelValues("invalid_variant").Inc()
	case errors.As(err, &missing):
		metrics.OrderRejections.WithLabelValues("missing_field").Inc()
	case errors.As(err, &invalid):
		metrics.OrderRejections.WithLabelValues("validation").Inc()
	}
}

func validateCart(items []CartItem) error {
	if len(items) == 0 {
		return &ValidationError{Message: "Order must contain at least one item"}
	}
	for i, item := range items {
		switch {
		case item.ProductID == uuid.Nil:
			return &ValidationError{Message: fmt.Sprintf("items[%d].productId is required", i)}
		case item.VariantID == uuid.Nil:
			return &ValidationError{Message: fmt.Sprintf("items[%d].variantId is required", i)}
		case item.Quantity < 1:
			return &ValidationError{Message: fmt.Sprintf("items[%d].quantity must be at least 1", i)}
		}
	}
	return nil
}

// requiredCustomerData returns only the fields the product asks for. Falsy
// answers (null, blank, false, 0) count as missing.
func requiredCustomerData(fields []models.CustomerDataField, submitted models.FieldMap) (models.FieldMap, error) {
	out := make(models.FieldMap, len(fields))
	for _, f := range fields {
		v, ok := submitted[f.FieldName]
		if !ok || v.Empty() {
			return nil, &MissingCustomerFieldError{Field: f.FieldName}
		}
		out[f.FieldName] = v
	}
	return out, nil
}

func productIDs(items []CartItem) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// NormalizeCode upper-cases a customer supplied order code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
