package inventory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thishamdi/digital-store-api/internal/models"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// InventoryService owns every write to products.stock. All methods expect
// to run inside a DB transaction.
type InventoryService struct {
	DB *gorm.DB
}

func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{DB: db}
}

// LockProducts loads the given products with their variants and holds a row
// lock on each until the transaction ends. Rows are locked in ascending id
// order so two carts sharing products cannot deadlock.
func (s *InventoryService) LockProducts(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var products []models.Product
	err := tx.
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

// DebitStock takes qty units off a product and counts them as sold. The
// guard in the WHERE clause keeps stock from going negative even if the
// caller skipped the lock.
func (s *InventoryService) DebitStock(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.New("quantity to debit must be greater than zero")
	}

	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]any{
			"stock":       gorm.Expr("stock - ?", qty),
			"sales_count": gorm.Expr("sales_count + ?", qty),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
