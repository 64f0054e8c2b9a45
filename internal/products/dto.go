package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	"github.com/gulautos/storefront-backend/pkg/enums"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

// CategorySummary is the category reference embedded in product payloads.
type CategorySummary struct {
	ID   uuid.UUID `json:"_id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ProductDTO is the public product shape.
type ProductDTO struct {
	ID          uuid.UUID        `json:"_id"`
	Name        string           `json:"name"`
	Description *string          `json:"description,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	Stock       int              `json:"stock"`
	Image       *string          `json:"image,omitempty"`
	IsActive    bool             `json:"isActive"`
	Category    *CategorySummary `json:"category,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// CreateProductInput is the admin create payload.
type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,min=2,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Image       *string         `json:"image" validate:"omitempty,url"`
	CategoryID  *uuid.UUID      `json:"categoryId"`
	IsActive    *bool           `json:"isActive"`
}

// UpdateProductInput is the admin update payload. Nil fields are left untouched.
type UpdateProductInput struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	Image       *string          `json:"image" validate:"omitempty,url"`
	CategoryID  *uuid.UUID       `json:"categoryId"`
	IsActive    *bool            `json:"isActive"`
}

// ListProductsInput captures the browse filters.
type ListProductsInput struct {
	Search       string
	CategorySlug string
	Sort         enums.ProductSort
	IncludeAll   bool
	Pagination   pagination.Params
}

// ProductListResult is a page of products.
type ProductListResult = pagination.Page[ProductDTO]

func NewProductDTO(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Image:       p.ImageURL,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Category != nil {
		dto.Category = &CategorySummary{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	return dto
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
