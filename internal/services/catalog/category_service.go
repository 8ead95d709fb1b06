package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/utils"
	"github.com/thishamdi/digital-store-api/internal/validate"
)

type CategoryFilterInput struct {
	Name   string              `json:"name" validate:"required"`
	Type   models.FieldKind    `json:"type" validate:"required,oneof=string number boolean date"`
	Values []models.FieldValue `json:"values"`
}

type CategoryInput struct {
	Name        string                `json:"name" validate:"required,max=50"`
	Parent      *uuid.UUID            `json:"parent"`
	Description string                `json:"description"`
	Featured    bool                  `json:"featured"`
	Filters     []CategoryFilterInput `json:"filters" validate:"dive"`
	Icon        string                `json:"icon"`
	SEO         models.SEO            `json:"seo"`
}

type CategoryService struct {
	DB *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{DB: db}
}

func (s *CategoryService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)

	if in.Parent != nil {
		var n int64
		if err := db.Model(&models.Category{}).Where("id = ?", *in.Parent).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrParentNotFound
		}
	}

	filters := make([]models.CategoryFilter, 0, len(in.Filters))
	for _, f := range in.Filters {
		filters = append(filters, models.CategoryFilter{Name: f.Name, Type: f.Type, Values: f.Values})
	}

	cat := models.Category{
		Name:        in.Name,
		Slug:        utils.Slugify(in.Name),
		ParentID:    in.Parent,
		Description: in.Description,
		Featured:    in.Featured,
		Filters:     datatypes.JSONSlice[models.CategoryFilter](filters),
		Icon:        in.Icon,
		SEO:         in.SEO,
	}
	if cat.Slug == "" {
		return nil, ErrCategoryNameSlug
	}
	if err := db.Create(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrCategoryExists
		}
		return nil, err
	}
	cat.Children = []models.Category{}
	return &cat, nil
}

// ListCategories returns the root categories, each with its direct children.
func (s *CategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var roots []models.Category
	if err := s.DB.WithContext(ctx).Where("parent_id IS NULL").Order("name").Find(&roots).Error; err != nil {
		return nil, err
	}
	if err := s.attachChildren(ctx, roots); err != nil {
		return nil, err
	}
	return roots, nil
}

func (s *CategoryService) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var cat models.Category
	err := s.DB.WithContext(ctx).Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}

	list := []models.Category{cat}
	if err := s.attachChildren(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *CategoryService) attachChildren(ctx context.Context, parents []models.Category) error {
	if len(parents) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(parents))
	for i := range parents {
		ids[i] = parents[i].ID
		parents[i].Children = []models.Category{}
	}

	var children []models.Category
	if err := s.DB.WithContext(ctx).Where("parent_id IN ?", ids).Order("name").Find(&children).Error; err != nil {
		return err
	}

	byParent := make(map[uuid.UUID][]models.Category, len(parents))
	for _, ch := range children {
		ch.Children = []models.Category{}
		byParent[*ch.ParentID] = append(byParent[*ch.ParentID], ch)
	}
	for i := range parents {
		if kids, ok := byParent[parents[i].ID]; ok {
			parents[i].Children = kids
		}
	}
	return nil
}
