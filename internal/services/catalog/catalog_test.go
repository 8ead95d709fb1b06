package catalog

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/apperr"
	"github.com/thishamdi/digital-store-api/internal/db/dbtest"
	"github.com/thishamdi/digital-store-api/internal/models"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	status, ok := apperr.Status(err)
	require.True(t, ok, "expected a client error, got %v", err)
	return status
}

func sampleInput(categoryID uuid.UUID, title string) ProductInput {
	return ProductInput{
		Title:       title,
		Description: "Shared premium plan",
		CategoryID:  categoryID,
		Stock:       10,
		Status:      models.ProductActive,
		Variants: []VariantInput{
			{Duration: "1 month", Price: dec("9.99")},
			{Duration: "12 months", Price: dec("99.00")},
		},
		RequiredCustomerData: []CustomerFieldInput{
			{FieldName: "email", FieldType: models.CustomerFieldEmail},
		},
		Pricing:        PricingInput{BasePrice: dec("9.99")},
		DigitalContent: DigitalContentInput{Type: models.ContentSubscription, Platform: "Netflix"},
		Tags:           []string{"streaming", "video"},
		Specifications: models.FieldMap{"screens": models.NumberValue(4)},
	}
}

func TestCreateCategoryAndTree(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewCategoryService(gdb)
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, CategoryInput{
		Name:    "Streaming Services",
		Filters: []CategoryFilterInput{{Name: "Quality", Type: models.FieldString, Values: []models.FieldValue{models.StringValue("4K")}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "streaming-services", root.Slug)
	assert.Empty(t, root.Children)

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Video", Parent: &root.ID})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Music", Parent: &root.ID})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Games"})
	require.NoError(t, err)

	roots, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "Games", roots[0].Name)
	assert.Empty(t, roots[0].Children)
	require.Len(t, roots[1].Children, 2)
	assert.Equal(t, "Music", roots[1].Children[0].Name)

	got, err := svc.GetCategoryBySlug(ctx, "Streaming-Services")
	require.NoError(t, err)
	assert.Len(t, got.Children, 2)
	require.Len(t, got.Filters, 1)
	assert.Equal(t, "4K", got.Filters[0].Values[0].Str)
}

func TestCreateCategoryErrors(t *testing.T) {
	svc := NewCategoryService(dbtest.New(t))
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, CategoryInput{Name: "Software"})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Software"})
	assert.ErrorIs(t, err, ErrCategoryExists)

	missing := uuid.New()
	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Orphan", Parent: &missing})
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.CreateCategory(ctx, CategoryInput{Name: "Bad filter", Filters: []CategoryFilterInput{{Name: "x", Type: "color"}}})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.GetCategoryBySlug(ctx, "nope")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCreateProduct(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	cat := dbtest.Category(t, gdb, "Streaming", nil)

	p, err := svc.CreateProduct(context.Background(), sampleInput(cat.ID, " Netflix Premium 4K "))
	require.NoError(t, err)
	assert.Equal(t, "netflix-premium-4k", p.Slug)
	assert.Equal(t, models.USD, p.Pricing.Currency)
	require.NotNil(t, p.Category)
	assert.Equal(t, "Streaming", p.Category.Name)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "1 month", p.Variants[0].Duration)
	assert.Equal(t, 4.0, p.Specifications.Data()["screens"].Num)

	_, err = svc.CreateProduct(context.Background(), sampleInput(cat.ID, "Netflix premium 4k"))
	assert.ErrorIs(t, err, ErrProductExists)
}

func TestCreateProductValidation(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	cat := dbtest.Category(t, gdb, "Streaming", nil)
	ctx := context.Background()

	cases := map[string]func(in *ProductInput){
		"missing title":       func(in *ProductInput) { in.Title = "" },
		"missing description": func(in *ProductInput) { in.Description = "" },
		"negative stock":      func(in *ProductInput) { in.Stock = -1 },
		"bad status":          func(in *ProductInput) { in.Status = "live" },
		"bad currency":        func(in *ProductInput) { in.Pricing.Currency = "JPY" },
		"base price too low":  func(in *ProductInput) { in.Pricing.BasePrice = dec("0") },
		"missing base price":  func(in *ProductInput) { in.Pricing.BasePrice = nil },
		"negative variant":    func(in *ProductInput) { in.Variants[0].Price = dec("-1") },
		"variant no duration": func(in *ProductInput) { in.Variants[0].Duration = "" },
		"bad field type": func(in *ProductInput) {
			in.RequiredCustomerData = []CustomerFieldInput{{FieldName: "x", FieldType: "phone"}}
		},
		"dropdown without options": func(in *ProductInput) {
			in.RequiredCustomerData = []CustomerFieldInput{{FieldName: "region", FieldType: models.CustomerFieldDropdown}}
		},
		"bad media": func(in *ProductInput) { in.Media = []MediaInput{{URL: "not a url", Type: models.MediaImage}} },
		"unknown category": func(in *ProductInput) { in.CategoryID = uuid.New() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := sampleInput(cat.ID, "Product "+name)
			mutate(&in)
			_, err := svc.CreateProduct(ctx, in)
			assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		})
	}

	var n int64
	require.NoError(t, gdb.Model(&models.Product{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestListProducts(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	ctx := context.Background()
	video := dbtest.Category(t, gdb, "Video", nil)
	music := dbtest.Category(t, gdb, "Music", nil)

	dbtest.Product(t, gdb, dbtest.ProductOpts{Title: "Netflix", Price: "15", Platform: "Netflix", Tags: []string{"4k", "family"}, Category: &video})
	dbtest.Product(t, gdb, dbtest.ProductOpts{Title: "Hulu", Price: "8", Platform: "Hulu", Tags: []string{"family"}, Category: &video})
	dbtest.Product(t, gdb, dbtest.ProductOpts{Title: "Spotify", Price: "10", Platform: "Spotify", Status: models.ProductDraft, Category: &music})

	titles := func(page *ProductPage) []string {
		out := make([]string, len(page.Products))
		for i, p := range page.Products {
			out[i] = p.Title
		}
		return out
	}

	page, err := svc.ListProducts(ctx, ProductQuery{Sort: "price"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, DefaultPageSize, page.Limit)
	assert.Equal(t, []string{"Hulu", "Spotify", "Netflix"}, titles(page))
	require.NotNil(t, page.Products[0].Category)
	assert.Len(t, page.Products[0].Variants, 1)

	page, err = svc.ListProducts(ctx, ProductQuery{Sort: "-title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spotify", "Netflix", "Hulu"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{Status: "active", Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hulu", "Netflix"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{Category: music.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spotify"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{Category: "video", Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hulu", "Netflix"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{MinPrice: "9", MaxPrice: "12"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spotify"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{Platform: "Netflix"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Netflix"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{Tag: "family", Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hulu", "Netflix"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{Sort: "title", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, []string{"Spotify"}, titles(page))

	page, err = svc.ListProducts(ctx, ProductQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Limit)

	_, err = svc.ListProducts(ctx, ProductQuery{MinPrice: "cheap"})
	assert.ErrorIs(t, err, ErrInvalidPriceQ)
}

func TestProductFilters(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	ctx := context.Background()

	empty, err := svc.ProductFilters(ctx, "")
	require.NoError(t, err)
	assert.True(t, empty.PriceRange.MinPrice.IsZero())
	assert.True(t, empty.PriceRange.MaxPrice.IsZero())
	assert.Empty(t, empty.CategoryFilters)

	cats := NewCategoryService(gdb)
	video, err := cats.CreateCategory(ctx, CategoryInput{
		Name:    "Video",
		Filters: []CategoryFilterInput{{Name: "Screens", Type: models.FieldNumber}},
	})
	require.NoError(t, err)
	other := dbtest.Category(t, gdb, "Other", nil)

	dbtest.Product(t, gdb, dbtest.ProductOpts{BasePrice: "4.50", Category: video})
	dbtest.Product(t, gdb, dbtest.ProductOpts{BasePrice: "20", Category: video})
	dbtest.Product(t, gdb, dbtest.ProductOpts{BasePrice: "500", Category: &other})

	sum, err := svc.ProductFilters(ctx, video.ID.String())
	require.NoError(t, err)
	require.Len(t, sum.CategoryFilters, 1)
	assert.Equal(t, "Screens", sum.CategoryFilters[0].Name)
	assert.True(t, decimal.RequireFromString("4.5").Equal(sum.PriceRange.MinPrice), sum.PriceRange.MinPrice.String())
	assert.True(t, decimal.RequireFromString("20").Equal(sum.PriceRange.MaxPrice), sum.PriceRange.MaxPrice.String())

	_, err = svc.ProductFilters(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	_, err = svc.ProductFilters(ctx, "video")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestGetProductBySlugCountsViews(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	p := dbtest.Product(t, gdb, dbtest.ProductOpts{Title: "Disney Plus"})

	got, err := svc.GetProductBySlug(context.Background(), "disney-plus")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 1, got.Views)

	got, err = svc.GetProductBySlug(context.Background(), "disney-plus")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)

	_, err = svc.GetProductBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProductPartial(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	cat := dbtest.Category(t, gdb, "Streaming", nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, sampleInput(cat.ID, "Netflix Premium"))
	require.NoError(t, err)

	title := "Netflix Premium Plus"
	stock := 3
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductPatch{Title: &title, Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "netflix-premium", updated.Slug, "slug is fixed at creation")
	assert.Equal(t, 3, updated.Stock)
	assert.Equal(t, "Shared premium plan", updated.Description)
	assert.Len(t, updated.Variants, 2, "variants untouched when not in the patch")
	assert.Equal(t, []string{"streaming", "video"}, []string(updated.Tags))

	bad := -5
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &bad})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	missing := uuid.New()
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{CategoryID: &missing})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = svc.UpdateProduct(ctx, uuid.New(), ProductPatch{Title: &title})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProductKeepsCountersWritten(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	cat := dbtest.Category(t, gdb, "Streaming", nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, sampleInput(cat.ID, "Netflix Premium"))
	require.NoError(t, err)

	// An order settling between the PATCH's read and its write.
	debited := false
	require.NoError(t, gdb.Callback().Update().Before("gorm:update").Register("test:order_debit", func(d *gorm.DB) {
		if debited || d.Statement.Table != "products" {
			return
		}
		debited = true
		d.AddError(d.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE products SET stock = stock - 3, sales_count = sales_count + 3, views = views + 1 WHERE id = ?", p.ID).Error)
	}))

	title := "Netflix Premium Plus"
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductPatch{Title: &title})
	require.NoError(t, err)
	require.True(t, debited)

	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 7, updated.Stock)
	assert.Equal(t, 3, updated.SalesCount)
	assert.Equal(t, 1, updated.Views)

	stock := 20
	updated, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Stock)
	assert.Equal(t, 3, updated.SalesCount)
}

func TestUpdateProductVariants(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	cat := dbtest.Category(t, gdb, "Streaming", nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, sampleInput(cat.ID, "Spotify Family"))
	require.NoError(t, err)
	keep, drop := p.Variants[0], p.Variants[1]

	variants := []VariantInput{
		{ID: &keep.ID, Duration: "1 month", Price: dec("7.49")},
		{Duration: "6 months", Price: dec("40")},
	}
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductPatch{Variants: &variants})
	require.NoError(t, err)
	require.Len(t, updated.Variants, 2)
	assert.Equal(t, keep.ID, updated.Variants[0].ID)
	assert.True(t, decimal.RequireFromString("7.49").Equal(updated.Variants[0].Price))
	assert.Equal(t, "6 months", updated.Variants[1].Duration)
	assert.NotEqual(t, drop.ID, updated.Variants[1].ID)

	var n int64
	require.NoError(t, gdb.Model(&models.ProductVariant{}).Where("id = ?", drop.ID).Count(&n).Error)
	assert.Zero(t, n)

	foreign := uuid.New()
	bogus := []VariantInput{{ID: &foreign, Duration: "x", Price: dec("1")}}
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{Variants: &bogus})
	assert.ErrorIs(t, err, ErrUnknownVariant)

	after, err := svc.load(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, after.Variants, 2, "failed patch leaves variants alone")
}

func TestDeleteProduct(t *testing.T) {
	gdb := dbtest.New(t)
	svc := NewProductService(gdb)
	p := dbtest.Product(t, gdb, dbtest.ProductOpts{})

	require.NoError(t, svc.DeleteProduct(context.Background(), p.ID))

	err := gdb.First(&models.Product{}, "id = ?", p.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	var n int64
	require.NoError(t, gdb.Model(&models.ProductVariant{}).Where("product_id = ?", p.ID).Count(&n).Error)
	assert.Zero(t, n)

	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), p.ID), ErrProductNotFound)
}
