package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adjeibohyen/tutorhub-backend/pkg/enums"
)

// Purchase is the ledger row for a one-off video payment. The processor
// reference is minted at initialize time and is the only join key between
// this row and the processor's event stream. At most one success row may
// exist per (user_id, video_id); the partial unique index enforces it.
type Purchase struct {
	ID                uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	VideoID           uuid.UUID            `gorm:"column:video_id;type:uuid;not null;index"`
	AmountPaid        int64                `gorm:"column:amount_paid;not null"`
	PaystackReference string               `gorm:"column:paystack_reference;not null;unique"`
	Status            enums.PurchaseStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
