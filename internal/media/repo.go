package media

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	"github.com/gulautos/storefront-backend/pkg/pagination"
)

// Repository persists media metadata rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a media repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateBatch inserts rows in a single statement so a failure leaves none behind.
func (r *Repository) CreateBatch(ctx context.Context, rows []models.Media) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var media models.Media
	if err := r.db.WithContext(ctx).First(&media, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &media, nil
}

func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Media, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Media
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// DeleteByIDs removes the rows and returns how many were deleted.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Media{})
	return res.RowsAffected, res.Error
}

// List returns newest-first media filtered by file name.
func (r *Repository) List(ctx context.Context, search string, params pagination.Params) ([]models.Media, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Media{})
	if search != "" {
		base = base.Where(`LOWER(file_name) LIKE ? ESCAPE '\'`, pagination.LikePattern(search))
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params = params.Normalize()
	var rows []models.Media
	err := base.
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
