package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adjeibohyen/tutorhub-backend/pkg/db"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	"github.com/adjeibohyen/tutorhub-backend/pkg/enums"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreatePendingPurchase inserts the ledger row before any processor call so
// a reference can never arrive on an event the ledger has no row for.
func (r *repository) CreatePendingPurchase(ctx context.Context, purchase *models.Purchase) (*models.Purchase, error) {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	purchase.Status = enums.PurchaseStatusPending

	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		if db.IsUniqueViolation(err, "paystack_reference") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "duplicate payment reference")
		}
		if db.IsUniqueViolation(err, "user_video_success") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "video already purchased")
		}
		return nil, err
	}
	return purchase, nil
}

func (r *repository) FindPurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("paystack_reference = ?", reference).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindSuccessPurchase(ctx context.Context, userID, videoID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND video_id = ? AND status = ?", userID, videoID, enums.PurchaseStatusSuccess).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) ListSuccessPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.PurchaseStatusSuccess).
		Order("created_at DESC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

// MarkPurchaseByReference transitions the row for a reference from pending
// to the given terminal status. The transition is a single conditional
// UPDATE, so concurrent attempts race harmlessly: exactly one wins and the
// rest observe the already-settled row. Re-delivering the same outcome is a
// no-op; delivering the opposite terminal outcome is a conflict.
func (r *repository) MarkPurchaseByReference(ctx context.Context, reference string, to enums.PurchaseStatus) (*models.Purchase, error) {
	if !to.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase transition target must be terminal")
	}

	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("paystack_reference = ? AND status = ?", reference, enums.PurchaseStatusPending).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	purchase, err := r.FindPurchaseByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if res.RowsAffected == 0 && purchase.Status != to {
		return purchase, pkgerrors.New(pkgerrors.CodeConflict, "purchase already settled with a different outcome")
	}
	return purchase, nil
}

func (r *repository) DeletePurchasesByVideo(ctx context.Context, videoID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Delete(&models.Purchase{}).Error
}

// UpsertSubscription writes the processor's latest view of a subscription,
// keyed on (user_id, plan_code). Later events overwrite earlier ones.
func (r *repository) UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "plan_code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"paystack_customer_id",
				"paystack_subscription_code",
				"current_period_start",
				"current_period_end",
				"updated_at",
			}),
		}).
		Create(sub).Error
	if err != nil {
		return nil, err
	}

	var stored models.Subscription
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND plan_code = ?", sub.UserID, sub.PlanCode).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) FindValidSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.SubscriptionStatusActive).
		Where("current_period_end IS NULL OR current_period_end >= ?", now).
		Order("updated_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
