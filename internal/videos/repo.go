package videos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
)

// Repository exposes catalog persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, video *models.Video) (*models.Video, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	List(ctx context.Context, category *string) ([]models.Video, error)
	Save(ctx context.Context, video *models.Video) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a videos repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, video *models.Video) (*models.Video, error) {
	if video.ID == uuid.Nil {
		video.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return nil, err
	}
	return video, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).First(&video, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// List returns the catalog ordered by recency, optionally filtered by category.
func (r *repository) List(ctx context.Context, category *string) ([]models.Video, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if category != nil && *category != "" {
		query = query.Where("category = ?", *category)
	}
	var items []models.Video
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Save(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Save(video).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Video{}, "id = ?", id).Error
}
