package videos

import (
	"time"

	"github.com/google/uuid"

	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
)

// CreateVideoRequest is the admin payload for publishing a tutorial.
type CreateVideoRequest struct {
	Title           string  `json:"title" validate:"required"`
	Description     string  `json:"description"`
	VideoURL        string  `json:"video_url" validate:"required,url"`
	ThumbnailURL    *string `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	PriceMinor      int64   `json:"price_minor" validate:"gte=0"`
	DurationSeconds *int    `json:"duration_seconds,omitempty" validate:"omitempty,gt=0"`
	Category        *string `json:"category,omitempty"`
}

// UpdateVideoRequest carries partial updates; nil fields are left unchanged.
type UpdateVideoRequest struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	VideoURL        *string `json:"video_url,omitempty" validate:"omitempty,url"`
	ThumbnailURL    *string `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	PriceMinor      *int64  `json:"price_minor,omitempty" validate:"omitempty,gte=0"`
	DurationSeconds *int    `json:"duration_seconds,omitempty" validate:"omitempty,gt=0"`
	Category        *string `json:"category,omitempty"`
}

// VideoDTO is the catalog shape returned to clients. VideoURL is only
// populated for viewers that hold access to the content.
type VideoDTO struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	VideoURL        string    `json:"video_url,omitempty"`
	ThumbnailURL    *string   `json:"thumbnail_url,omitempty"`
	PriceMinor      int64     `json:"price_minor"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	Category        *string   `json:"category,omitempty"`
	HasAccess       bool      `json:"has_access"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FromModel maps a stored video to its transport shape, withholding the
// playback URL unless the viewer has access.
func FromModel(v *models.Video, hasAccess bool) *VideoDTO {
	if v == nil {
		return nil
	}

	dto := &VideoDTO{
		ID:              v.ID,
		Title:           v.Title,
		Description:     v.Description,
		ThumbnailURL:    v.ThumbnailURL,
		PriceMinor:      v.PriceMinor,
		DurationSeconds: v.DurationSeconds,
		Category:        v.Category,
		HasAccess:       hasAccess,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
	if hasAccess {
		dto.VideoURL = v.VideoURL
	}
	return dto
}
