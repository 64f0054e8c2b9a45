package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	"github.com/gulautos/storefront-backend/pkg/enums"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

// Repository captures the persistence operations required by the orders service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, int64, error)
}

// ListFilter narrows order listings. Zero values mean no filter.
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}
