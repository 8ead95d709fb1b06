package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductDraft, ProductActive, ProductArchived:
		return true
	}
	return false
}

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

func (c Currency) Valid() bool {
	switch c {
	case USD, EUR, GBP:
		return true
	}
	return false
}

type ContentType string

const (
	ContentAccount      ContentType = "account"
	ContentSubscription ContentType = "subscription"
	ContentGiftCard     ContentType = "gift-card"
	ContentSerialKey    ContentType = "serial-key"
	ContentSoftware     ContentType = "software"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentAccount, ContentSubscription, ContentGiftCard, ContentSerialKey, ContentSoftware:
		return true
	}
	return false
}

type CustomerFieldType string

const (
	CustomerFieldEmail    CustomerFieldType = "email"
	CustomerFieldText     CustomerFieldType = "text"
	CustomerFieldDropdown CustomerFieldType = "dropdown"
)

func (t CustomerFieldType) Valid() bool {
	switch t {
	case CustomerFieldEmail, CustomerFieldText, CustomerFieldDropdown:
		return true
	}
	return false
}

// CustomerDataField is something the buyer must supply when ordering,
// e.g. the email the subscription gets attached to.
type CustomerDataField struct {
	FieldName string            `json:"fieldName"`
	FieldType CustomerFieldType `json:"fieldType"`
	Options   []string          `json:"options,omitempty"`
}

type Pricing struct {
	BasePrice          decimal.Decimal     `gorm:"type:numeric(12,2);not null;index" json:"basePrice"`
	SalePrice          decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"salePrice"`
	Currency           Currency            `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	DiscountPercentage *float64            `json:"discountPercentage"`
}

type DigitalContent struct {
	Type                ContentType                  `gorm:"type:varchar(20)" json:"type"`
	Platform            string                       `gorm:"type:varchar(60);index" json:"platform"`
	CredentialsEmail    string                       `json:"credentialsEmail,omitempty"`
	CredentialsPassword string                       `json:"credentialsPassword,omitempty"`
	SerialKey           string                       `json:"serialKey,omitempty"`
	ActivationDate      *time.Time                   `json:"activationDate,omitempty"`
	ExpirationDate      *time.Time                   `json:"expirationDate,omitempty"`
	AdditionalData      datatypes.JSONType[FieldMap] `json:"additionalData"`
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

type Content struct {
	ShortDescription datatypes.JSONSlice[string] `json:"shortDescription"`
	FullDescription  string                      `gorm:"type:text" json:"fullDescription"`
}

type ProductVariant struct {
	ID                 uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID          uuid.UUID           `gorm:"type:uuid;not null;index" json:"-"`
	Duration           string              `gorm:"type:varchar(60);not null" json:"duration"`
	Price              decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	OriginalPrice      decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"originalPrice"`
	DiscountPercentage *float64            `json:"discountPercentage"`
	Position           int                 `gorm:"not null;default:0" json:"-"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return
}

type Product struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string        `gorm:"type:varchar(100);not null" json:"title"`
	Slug        string        `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`
	Description string        `gorm:"type:text;not null" json:"description"`
	CategoryID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"categoryId"`
	Category    *Category     `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Stock       int           `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Status      ProductStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	Variants             []ProductVariant                       `gorm:"foreignKey:ProductID" json:"variants"`
	RequiredCustomerData datatypes.JSONSlice[CustomerDataField] `json:"requiredCustomerData"`

	Pricing        Pricing        `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`
	DigitalContent DigitalContent `gorm:"embedded;embeddedPrefix:digital_" json:"digitalContent"`
	Content        Content        `gorm:"embedded;embeddedPrefix:content_" json:"content"`

	Media          datatypes.JSONSlice[Media]   `json:"media"`
	Tags           datatypes.JSONSlice[string]  `json:"tags"`
	Specifications datatypes.JSONType[FieldMap] `json:"specifications"`

	SalesCount int `gorm:"not null;default:0" json:"salesCount"`
	Views      int `gorm:"not null;default:0" json:"views"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// Variant returns the variant with the given id, or nil.
func (p *Product) Variant(id uuid.UUID) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}
