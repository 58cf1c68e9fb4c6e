package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	"github.com/adjeibohyen/tutorhub-backend/pkg/enums"
)

// Repository is the durable ledger: purchase rows keyed by processor
// reference and subscription projections keyed by (user, plan).
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePendingPurchase(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error)
	FindPurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error)
	FindSuccessPurchase(ctx context.Context, userID, videoID uuid.UUID) (*models.Purchase, error)
	ListSuccessPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error)
	MarkPurchaseByReference(ctx context.Context, reference string, to enums.PurchaseStatus) (*models.Purchase, error)
	DeletePurchasesByVideo(ctx context.Context, videoID uuid.UUID) error

	UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	FindValidSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error)
}
