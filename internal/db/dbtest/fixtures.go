package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

func Category(t testing.TB, gdb *gorm.DB, name string, parent *uuid.UUID) models.Category {
	t.Helper()
	c := models.Category{Name: name, Slug: utils.Slugify(name), ParentID: parent}
	require.NoError(t, gdb.Create(&c).Error)
	return c
}

// ProductOpts tweaks the product built by Product.
type ProductOpts struct {
	Title     string
	Stock     int
	Price     string
	BasePrice string
	Platform  string
	Tags      []string
	Status    models.ProductStatus
	Required  []models.CustomerDataField
	Category  *models.Category
}

// Product creates a product with a single variant priced at opts.Price.
func Product(t testing.TB, gdb *gorm.DB, opts ProductOpts) models.Product {
	t.Helper()

	if opts.Title == "" {
		opts.Title = "Product " + uuid.NewString()[:8]
	}
	if opts.Price == "" {
		opts.Price = "10"
	}
	if opts.BasePrice == "" {
		opts.BasePrice = opts.Price
	}
	if opts.Status == "" {
		opts.Status = models.ProductActive
	}
	if opts.Category == nil {
		c := Category(t, gdb, "Category "+uuid.NewString()[:8], nil)
		opts.Category = &c
	}

	p := models.Product{
		Title:       opts.Title,
		Slug:        utils.Slugify(opts.Title),
		Description: "test product",
		CategoryID:  opts.Category.ID,
		Stock:       opts.Stock,
		Status:      opts.Status,
		Variants: []models.ProductVariant{
			{Duration: "1 month", Price: decimal.RequireFromString(opts.Price)},
		},
		RequiredCustomerData: datatypes.JSONSlice[models.CustomerDataField](opts.Required),
		Pricing: models.Pricing{
			BasePrice: decimal.RequireFromString(opts.BasePrice),
			Currency:  models.USD,
		},
		DigitalContent: models.DigitalContent{
			Type:     models.ContentSubscription,
			Platform: opts.Platform,
		},
		Tags: datatypes.JSONSlice[string](opts.Tags),
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}

// Stock reads the current stock of a product.
func Stock(t testing.TB, gdb *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, gdb.Select("stock").First(&p, "id = ?", id).Error)
	return p.Stock
}

func CountOrders(t testing.TB, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&models.Order{}).Count(&n).Error)
	return n
}
