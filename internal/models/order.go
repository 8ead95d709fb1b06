package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func init() {
	// prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// VariantSnapshot is a copy of the variant as it was when the order was
// placed. Later product edits never touch it.
type VariantSnapshot struct {
	VariantID     uuid.UUID           `gorm:"type:uuid;not null" json:"variantId"`
	Duration      string              `gorm:"type:varchar(60);not null" json:"duration"`
	Price         decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	OriginalPrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"originalPrice"`
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Position  int       `gorm:"not null" json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"productId"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	Variant      VariantSnapshot              `gorm:"embedded;embeddedPrefix:variant_" json:"variant"`
	Quantity     int                          `gorm:"not null" json:"quantity"`
	CustomerData datatypes.JSONType[FieldMap] `json:"customerData"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}

// Subtotal is the frozen price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Variant.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID            uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	OrderCode     string                           `gorm:"type:varchar(8);uniqueIndex;not null" json:"orderCode"`
	Items         []OrderItem                      `gorm:"foreignKey:OrderID" json:"items"`
	Status        OrderStatus                      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	StatusHistory datatypes.JSONSlice[StatusEntry] `json:"statusHistory"`
	TotalAmount   decimal.Decimal                  `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	AdminComments string                           `gorm:"type:text" json:"adminComments"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return
}
