package catalog

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/utils"
	"github.com/thishamdi/digital-store-api/internal/validate"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var minBasePrice = decimal.RequireFromString("0.01")

type VariantInput struct {
	ID                 *uuid.UUID          `json:"id"`
	Duration           string              `json:"duration" validate:"required"`
	Price              *decimal.Decimal    `json:"price" validate:"required"`
	OriginalPrice      decimal.NullDecimal `json:"originalPrice"`
	DiscountPercentage *float64            `json:"discountPercentage" validate:"omitempty,gte=0,lte=100"`
}

type CustomerFieldInput struct {
	FieldName string                   `json:"fieldName" validate:"required"`
	FieldType models.CustomerFieldType `json:"fieldType" validate:"required,oneof=email text dropdown"`
	Options   []string                 `json:"options"`
}

type PricingInput struct {
	BasePrice          *decimal.Decimal    `json:"basePrice" validate:"required"`
	SalePrice          decimal.NullDecimal `json:"salePrice"`
	Currency           models.Currency     `json:"currency" validate:"omitempty,oneof=USD EUR GBP"`
	DiscountPercentage *float64            `json:"discountPercentage" validate:"omitempty,gte=0,lte=100"`
}

type DigitalContentInput struct {
	Type                models.ContentType `json:"type" validate:"omitempty,oneof=account subscription gift-card serial-key software"`
	Platform            string             `json:"platform"`
	CredentialsEmail    string             `json:"credentialsEmail" validate:"omitempty,email"`
	CredentialsPassword string             `json:"credentialsPassword"`
	SerialKey           string             `json:"serialKey"`
	ActivationDate      *time.Time         `json:"activationDate"`
	ExpirationDate      *time.Time         `json:"expirationDate"`
	AdditionalData      models.FieldMap    `json:"additionalData"`
}

type MediaInput struct {
	URL  string           `json:"url" validate:"required,url"`
	Type models.MediaType `json:"type" validate:"required,oneof=image video"`
}

type ProductInput struct {
	Title                string               `json:"title" validate:"required,max=100"`
	Description          string               `json:"description" validate:"required"`
	CategoryID           uuid.UUID            `json:"categoryId" validate:"required"`
	Stock                int                  `json:"stock" validate:"gte=0"`
	Status               models.ProductStatus `json:"status" validate:"omitempty,oneof=draft active archived"`
	Variants             []VariantInput       `json:"variants" validate:"dive"`
	RequiredCustomerData []CustomerFieldInput `json:"requiredCustomerData" validate:"dive"`
	Pricing              PricingInput         `json:"pricing"`
	DigitalContent       DigitalContentInput  `json:"digitalContent"`
	Media                []MediaInput         `json:"media" validate:"dive"`
	Tags                 []string             `json:"tags"`
	Specifications       models.FieldMap      `json:"specifications"`
	Content              models.Content       `json:"content"`
}

// ProductPatch carries only the fields a PATCH body mentioned. Sub-blocks
// (pricing, digitalContent, content) are replaced as a whole.
type ProductPatch struct {
	Title                *string               `json:"title"`
	Description          *string               `json:"description"`
	CategoryID           *uuid.UUID            `json:"categoryId"`
	Stock                *int                  `json:"stock"`
	Status               *models.ProductStatus `json:"status"`
	Variants             *[]VariantInput       `json:"variants"`
	RequiredCustomerData *[]CustomerFieldInput `json:"requiredCustomerData"`
	Pricing              *PricingInput         `json:"pricing"`
	DigitalContent       *DigitalContentInput  `json:"digitalContent"`
	Media                *[]MediaInput         `json:"media"`
	Tags                 *[]string             `json:"tags"`
	Specifications       *models.FieldMap      `json:"specifications"`
	Content              *models.Content       `json:"content"`
}

type ProductQuery struct {
	Status   string `query:"status"`
	Category string `query:"category"`
	MinPrice string `query:"minPrice"`
	MaxPrice string `query:"maxPrice"`
	Platform string `query:"platform"`
	Tag      string `query:"tag"`
	Page     int    `query:"page"`
	Limit    int    `query:"limit"`
	Sort     string `query:"sort"`
}

type ProductPage struct {
	TotalItems int64            `json:"totalItems"`
	TotalPages int              `json:"totalPages"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Products   []models.Product `json:"products"`
}

type PriceRange struct {
	MinPrice decimal.Decimal `json:"minPrice"`
	MaxPrice decimal.Decimal `json:"maxPrice"`
}

type FilterSummary struct {
	CategoryFilters []models.CategoryFilter `json:"categoryFilters"`
	PriceRange      PriceRange              `json:"priceRange"`
}

var sortColumns = map[string]string{
	"createdAt":  "created_at",
	"price":      "pricing_base_price",
	"title":      "title",
	"views":      "views",
	"salesCount": "sales_count",
}

type ProductService struct {
	DB *gorm.DB
}

func NewProductService(db *gorm.DB) *ProductService {
	return &ProductService{DB: db}
}

func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := checkProduct(in); err != nil {
		return nil, err
	}

	p := models.Product{Slug: utils.Slugify(in.Title)}
	if p.Slug == "" {
		return nil, ErrProductTitleSlug
	}
	applyInput(&p, in)
	for i, v := range in.Variants {
		p.Variants = append(p.Variants, variantFrom(v, i))
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := categoryExists(tx, in.CategoryID); err != nil {
			return err
		}
		return tx.Create(&p).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrProductExists
	}
	if err != nil {
		return nil, err
	}
	return s.load(ctx, p.ID)
}

func (s *ProductService) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}

	base := s.DB.WithContext(ctx).Model(&models.Product{})
	base, err := applyFilters(base, q)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	products := []models.Product{}
	err = base.Session(&gorm.Session{}).
		Preload("Category").
		Preload("Variants", orderByPosition).
		Order(sortClause(q.Sort)).
		Order("id").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
		Page:       q.Page,
		Limit:      q.Limit,
		Products:   products,
	}, nil
}

// ProductFilters returns the filter definitions of a category together with
// the base price range of its products. An empty categoryID covers the whole
// catalog.
func (s *ProductService) ProductFilters(ctx context.Context, categoryID string) (*FilterSummary, error) {
	db := s.DB.WithContext(ctx)
	out := &FilterSummary{CategoryFilters: []models.CategoryFilter{}}

	priceQ := db.Model(&models.Product{})
	if categoryID = strings.TrimSpace(categoryID); categoryID != "" {
		id, err := uuid.Parse(categoryID)
		if err != nil {
			return nil, ErrInvalidID
		}
		var cat models.Category
		err = db.First(&cat, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		if err != nil {
			return nil, err
		}
		if cat.Filters != nil {
			out.CategoryFilters = cat.Filters
		}
		priceQ = priceQ.Where("category_id = ?", id)
	}

	var row struct {
		MinPrice decimal.NullDecimal
		MaxPrice decimal.NullDecimal
	}
	err := priceQ.Select("MIN(pricing_base_price) AS min_price, MAX(pricing_base_price) AS max_price").Scan(&row).Error
	if err != nil {
		return nil, err
	}
	out.PriceRange = PriceRange{MinPrice: decimal.Zero, MaxPrice: decimal.Zero}
	if row.MinPrice.Valid {
		out.PriceRange.MinPrice = row.MinPrice.Decimal
	}
	if row.MaxPrice.Valid {
		out.PriceRange.MaxPrice = row.MaxPrice.Decimal
	}
	return out, nil
}

// GetProductBySlug loads a product for display and counts the view.
func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	db := s.DB.WithContext(ctx)

	var p models.Product
	err := db.Preload("Category").Preload("Variants", orderByPosition).
		Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := db.Model(&p).UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
		return nil, err
	}
	p.Views++
	return &p, nil
}

// UpdateProduct applies a partial update. The slug never changes. When the
// patch lists variants, entries carrying an existing id are updated, entries
// without an id are created and the rest are deleted.
//
// The row is locked for the whole update and only editable columns are
// written: stock only when the patch sets it, sales_count and views never,
// so a concurrent order's decrement is not overwritten.
func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Preload("Variants", orderByPosition).
			First(&p, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		in := inputFrom(&p)
		overlay(&in, patch)
		in.Title = strings.TrimSpace(in.Title)
		if err := checkProduct(in); err != nil {
			return err
		}
		if patch.CategoryID != nil && *patch.CategoryID != p.CategoryID {
			if err := categoryExists(tx, *patch.CategoryID); err != nil {
				return err
			}
		}

		applyInput(&p, in)
		existing := p.Variants
		p.Variants = nil

		omit := []string{"ID", "Slug", "CreatedAt", "SalesCount", "Views", "Variants", "Category"}
		if patch.Stock == nil {
			omit = append(omit, "Stock")
		}
		if err := tx.Model(&p).Select("*").Omit(omit...).Updates(&p).Error; err != nil {
			return err
		}

		if patch.Variants != nil {
			return syncVariants(tx, p.ID, existing, *patch.Variants)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// DeleteProduct removes the product and its variants. Orders keep their
// snapshots.
func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrProductNotFound
		}
		return tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error
	})
}

func (s *ProductService) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := s.DB.WithContext(ctx).Preload("Category").Preload("Variants", orderByPosition).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func syncVariants(tx *gorm.DB, productID uuid.UUID, existing []models.ProductVariant, wanted []VariantInput) error {
	current := make(map[uuid.UUID]bool, len(existing))
	for _, v := range existing {
		current[v.ID] = true
	}

	keep := make(map[uuid.UUID]bool, len(wanted))
	for i, in := range wanted {
		v := variantFrom(in, i)
		v.ProductID = productID
		if in.ID != nil {
			if !current[*in.ID] {
				return ErrUnknownVariant
			}
			v.ID = *in.ID
			keep[v.ID] = true
			if err := tx.Save(&v).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
	}

	var stale []uuid.UUID
	for _, v := range existing {
		if !keep[v.ID] {
			stale = append(stale, v.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return tx.Where("product_id = ? AND id IN ?", productID, stale).Delete(&models.ProductVariant{}).Error
}

func checkProduct(in ProductInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.Pricing.BasePrice.LessThan(minBasePrice) {
		return ErrInvalidPrice
	}
	for _, v := range in.Variants {
		if v.Price.IsNegative() {
			return ErrNegativePrice
		}
	}
	for _, f := range in.RequiredCustomerData {
		if f.FieldType == models.CustomerFieldDropdown && len(f.Options) == 0 {
			return ErrDropdownOptions
		}
	}
	return nil
}

func categoryExists(tx *gorm.DB, id uuid.UUID) error {
	var n int64
	if err := tx.Model(&models.Category{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownCategory
	}
	return nil
}

func applyFilters(q *gorm.DB, f ProductQuery) (*gorm.DB, error) {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		if id, err := uuid.Parse(f.Category); err == nil {
			q = q.Where("category_id = ?", id)
		} else {
			q = q.Where("category_id IN (?)", q.Session(&gorm.Session{NewDB: true}).
				Model(&models.Category{}).Select("id").Where("slug = ?", strings.ToLower(f.Category)))
		}
	}
	if f.MinPrice != "" {
		min, err := decimal.NewFromString(f.MinPrice)
		if err != nil {
			return nil, ErrInvalidPriceQ
		}
		q = q.Where("pricing_base_price >= ?", min)
	}
	if f.MaxPrice != "" {
		max, err := decimal.NewFromString(f.MaxPrice)
		if err != nil {
			return nil, ErrInvalidPriceQ
		}
		q = q.Where("pricing_base_price <= ?", max)
	}
	if f.Platform != "" {
		q = q.Where("digital_platform = ?", f.Platform)
	}
	if f.Tag != "" {
		q = q.Where(datatypes.JSONArrayQuery("tags").Contains(f.Tag))
	}
	return q, nil
}

// sortClause turns "-price" style input into an ORDER BY fragment. Unknown
// fields fall back to newest first.
func sortClause(sort string) string {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		sort = "-createdAt"
	}
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		sort = sort[1:]
	}
	col, ok := sortColumns[sort]
	if !ok {
		return "created_at DESC"
	}
	return col + " " + dir
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

func variantFrom(in VariantInput, pos int) models.ProductVariant {
	return models.ProductVariant{
		Duration:           strings.TrimSpace(in.Duration),
		Price:              *in.Price,
		OriginalPrice:      in.OriginalPrice,
		DiscountPercentage: in.DiscountPercentage,
		Position:           pos,
	}
}

func applyInput(p *models.Product, in ProductInput) {
	p.Title = in.Title
	p.Description = in.Description
	p.CategoryID = in.CategoryID
	p.Stock = in.Stock
	p.Status = in.Status
	if p.Status == "" {
		p.Status = models.ProductDraft
	}

	fields := make([]models.CustomerDataField, 0, len(in.RequiredCustomerData))
	for _, f := range in.RequiredCustomerData {
		fields = append(fields, models.CustomerDataField{
			FieldName: strings.TrimSpace(f.FieldName),
			FieldType: f.FieldType,
			Options:   f.Options,
		})
	}
	p.RequiredCustomerData = fields

	currency := in.Pricing.Currency
	if currency == "" {
		currency = models.USD
	}
	p.Pricing = models.Pricing{
		BasePrice:          *in.Pricing.BasePrice,
		SalePrice:          in.Pricing.SalePrice,
		Currency:           currency,
		DiscountPercentage: in.Pricing.DiscountPercentage,
	}

	dc := in.DigitalContent
	p.DigitalContent = models.DigitalContent{
		Type:                dc.Type,
		Platform:            strings.TrimSpace(dc.Platform),
		CredentialsEmail:    dc.CredentialsEmail,
		CredentialsPassword: dc.CredentialsPassword,
		SerialKey:           dc.SerialKey,
		ActivationDate:      dc.ActivationDate,
		ExpirationDate:      dc.ExpirationDate,
		AdditionalData:      datatypes.NewJSONType(nonNil(dc.AdditionalData)),
	}

	media := make([]models.Media, 0, len(in.Media))
	for _, m := range in.Media {
		media = append(media, models.Media{URL: m.URL, Type: m.Type})
	}
	p.Media = media
	p.Tags = append([]string{}, in.Tags...)
	p.Specifications = datatypes.NewJSONType(nonNil(in.Specifications))
	p.Content = in.Content
}

// inputFrom is the inverse of applyInput, used as the base a patch is laid
// over.
func inputFrom(p *models.Product) ProductInput {
	base := p.Pricing.BasePrice
	in := ProductInput{
		Title:       p.Title,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		Stock:       p.Stock,
		Status:      p.Status,
		Pricing: PricingInput{
			BasePrice:          &base,
			SalePrice:          p.Pricing.SalePrice,
			Currency:           p.Pricing.Currency,
			DiscountPercentage: p.Pricing.DiscountPercentage,
		},
		DigitalContent: DigitalContentInput{
			Type:                p.DigitalContent.Type,
			Platform:            p.DigitalContent.Platform,
			CredentialsEmail:    p.DigitalContent.CredentialsEmail,
			CredentialsPassword: p.DigitalContent.CredentialsPassword,
			SerialKey:           p.DigitalContent.SerialKey,
			ActivationDate:      p.DigitalContent.ActivationDate,
			ExpirationDate:      p.DigitalContent.ExpirationDate,
			AdditionalData:      p.DigitalContent.AdditionalData.Data(),
		},
		Tags:           p.Tags,
		Specifications: p.Specifications.Data(),
		Content:        p.Content,
	}
	for _, v := range p.Variants {
		id, price := v.ID, v.Price
		in.Variants = append(in.Variants, VariantInput{
			ID:                 &id,
			Duration:           v.Duration,
			Price:              &price,
			OriginalPrice:      v.OriginalPrice,
			DiscountPercentage: v.DiscountPercentage,
		})
	}
	for _, f := range p.RequiredCustomerData {
		in.RequiredCustomerData = append(in.RequiredCustomerData, CustomerFieldInput(f))
	}
	for _, m := range p.Media {
		in.Media = append(in.Media, MediaInput(m))
	}
	return in
}

func overlay(in *ProductInput, p ProductPatch) {
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.CategoryID != nil {
		in.CategoryID = *p.CategoryID
	}
	if p.Stock != nil {
		in.Stock = *p.Stock
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Variants != nil {
		in.Variants = *p.Variants
	}
	if p.RequiredCustomerData != nil {
		in.RequiredCustomerData = *p.RequiredCustomerData
	}
	if p.Pricing != nil {
		in.Pricing = *p.Pricing
	}
	if p.DigitalContent != nil {
		in.DigitalContent = *p.DigitalContent
	}
	if p.Media != nil {
		in.Media = *p.Media
	}
	if p.Tags != nil {
		in.Tags = *p.Tags
	}
	if p.Specifications != nil {
		in.Specifications = *p.Specifications
	}
	if p.Content != nil {
		in.Content = *p.Content
	}
}

func nonNil(m models.FieldMap) models.FieldMap {
	if m == nil {
		return models.FieldMap{}
	}
	return m
}
