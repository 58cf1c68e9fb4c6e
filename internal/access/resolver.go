package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
)

// Viewer identifies who is asking for content. The zero value is an
// anonymous viewer and never holds access.
type Viewer struct {
	UserID        uuid.UUID
	IsAdmin       bool
	Authenticated bool
}

type ledgerReader interface {
	FindValidSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error)
	FindSuccessPurchase(ctx context.Context, userID, videoID uuid.UUID) (*models.Purchase, error)
}

// Resolver answers the single question "may this viewer watch this video".
// Grants are checked in order: admin, then a currently-valid subscription,
// then a settled purchase of the specific video. Each rung answers without
// consulting the rungs below it, so an admin keeps access even when the
// ledger is unreachable.
type Resolver struct {
	ledger ledgerReader
	now    func() time.Time
}

// ResolverParams bundles the dependencies required to build a resolver.
type ResolverParams struct {
	Ledger ledgerReader

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewResolver constructs an access resolver.
func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger reader is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{ledger: params.Ledger, now: now}, nil
}

// HasBlanketAccess reports whether the viewer may watch any video,
// regardless of purchases: they are an admin or hold a valid subscription.
func (r *Resolver) HasBlanketAccess(ctx context.Context, viewer Viewer) (bool, error) {
	if !viewer.Authenticated || viewer.UserID == uuid.Nil {
		return false, nil
	}
	if viewer.IsAdmin {
		return true, nil
	}

	if _, err := r.ledger.FindValidSubscription(ctx, viewer.UserID, r.now().UTC()); err == nil {
		return true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "subscription lookup")
	}
	return false, nil
}

// HasAccess reports whether the viewer may watch the given video.
func (r *Resolver) HasAccess(ctx context.Context, viewer Viewer, videoID uuid.UUID) (bool, error) {
	if blanket, err := r.HasBlanketAccess(ctx, viewer); err != nil {
		return false, err
	} else if blanket {
		return true, nil
	}
	if !viewer.Authenticated || viewer.UserID == uuid.Nil {
		return false, nil
	}

	if _, err := r.ledger.FindSuccessPurchase(ctx, viewer.UserID, videoID); err == nil {
		return true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purchase lookup")
	}

	return false, nil
}
