package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/pkg/db"
	"github.com/gulautos/storefront-backend/pkg/db/models"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

type Service interface {
	ListCategories(ctx context.Context, input ListCategoriesInput) (*CategoryListResult, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type productCounter interface {
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
}

type service struct {
	repo     *Repository
	products productCounter
}

func NewService(repo *Repository, products productCounter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product counter required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) ListCategories(ctx context.Context, input ListCategoriesInput) (*CategoryListResult, error) {
	params := input.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, pagination.NormalizeSearch(input.Search), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	items := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	page := pagination.NewPage(items, params, total)
	return &page, nil
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(category)
	return &dto, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	slug := Slugify(name)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must contain letters or digits")
	}
	category := &models.Category{
		Name:        name,
		Slug:        slug,
		Description: trimOptional(input.Description),
		ImageURL:    trimOptional(input.Image),
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, mapWriteError(err, "create category")
	}
	dto := FromModel(category)
	return &dto, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error) {
	category, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		slug := Slugify(name)
		if slug == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must contain letters or digits")
		}
		category.Name = name
		category.Slug = slug
	}
	if input.Description != nil {
		category.Description = trimOptional(input.Description)
	}
	if input.Image != nil {
		category.ImageURL = trimOptional(input.Image)
	}
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, mapWriteError(err, "update category")
	}
	dto := FromModel(category)
	return &dto, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	count, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category products")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "category still has products").
			WithDetails(map[string]any{"products": count})
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("category")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return category, nil
}

func mapWriteError(err error, op string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
