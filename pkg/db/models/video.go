package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is a catalog entry. PriceMinor is the server-authoritative price in
// the currency's minor unit; client-supplied amounts are never trusted.
type Video struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title           string    `gorm:"column:title;not null"`
	Description     string    `gorm:"column:description;not null"`
	VideoURL        string    `gorm:"column:video_url;not null"`
	ThumbnailURL    *string   `gorm:"column:thumbnail_url"`
	PriceMinor      int64     `gorm:"column:price_minor;not null"`
	DurationSeconds *int      `gorm:"column:duration_seconds"`
	Category        *string   `gorm:"column:category"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
