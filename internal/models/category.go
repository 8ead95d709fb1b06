package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CategoryFilter struct {
	Name   string       `json:"name"`
	Type   FieldKind    `json:"type"`
	Values []FieldValue `json:"values"`
}

type SEO struct {
	Title       string                      `gorm:"type:varchar(120)" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Keywords    datatypes.JSONSlice[string] `json:"keywords"`
}

type Category struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Slug     string     `gorm:"type:varchar(80);uniqueIndex;not null" json:"slug"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent"`

	Description string                              `gorm:"type:text" json:"description"`
	Featured    bool                                `gorm:"not null;default:false" json:"featured"`
	Filters     datatypes.JSONSlice[CategoryFilter] `json:"filters"`
	Icon        string                              `json:"icon"`
	SEO         SEO                                 `gorm:"embedded;embeddedPrefix:seo_" json:"seo"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// derived: categories whose parent is this one, never stored
	Children []Category `gorm:"-" json:"children"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
