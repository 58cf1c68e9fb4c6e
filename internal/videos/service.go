package videos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/internal/access"
	"github.com/adjeibohyen/tutorhub-backend/internal/ledger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
)

// Service defines the behavior needed by the videos controllers.
type Service interface {
	List(ctx context.Context, viewer access.Viewer, category *string) ([]*VideoDTO, error)
	Get(ctx context.Context, viewer access.Viewer, id uuid.UUID) (*VideoDTO, error)
	Create(ctx context.Context, req CreateVideoRequest) (*VideoDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateVideoRequest) (*VideoDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type accessResolver interface {
	HasBlanketAccess(ctx context.Context, viewer access.Viewer) (bool, error)
	HasAccess(ctx context.Context, viewer access.Viewer, videoID uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	catalog  Repository
	ledger   ledger.Repository
	resolver accessResolver
	tx       txRunner
}

// ServiceParams bundles the dependencies required to build a videos service.
type ServiceParams struct {
	Catalog  Repository
	Ledger   ledger.Repository
	Resolver accessResolver
	TxRunner txRunner
}

// NewService constructs a videos service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("access resolver is required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	return &service{
		catalog:  params.Catalog,
		ledger:   params.Ledger,
		resolver: params.Resolver,
		tx:       params.TxRunner,
	}, nil
}

// List returns the catalog shaped for the viewer. Playback URLs are only
// included on entries the viewer holds access to.
func (s *service) List(ctx context.Context, viewer access.Viewer, category *string) ([]*VideoDTO, error) {
	items, err := s.catalog.List(ctx, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list videos")
	}

	blanket, err := s.resolver.HasBlanketAccess(ctx, viewer)
	if err != nil {
		return nil, err
	}

	owned := map[uuid.UUID]bool{}
	if !blanket && viewer.Authenticated {
		purchases, err := s.ledger.ListSuccessPurchasesByUser(ctx, viewer.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
		}
		for _, p := range purchases {
			owned[p.VideoID] = true
		}
	}

	dtos := make([]*VideoDTO, 0, len(items))
	for i := range items {
		video := &items[i]
		dtos = append(dtos, FromModel(video, blanket || owned[video.ID]))
	}
	return dtos, nil
}

func (s *service) Get(ctx context.Context, viewer access.Viewer, id uuid.UUID) (*VideoDTO, error) {
	video, err := s.findVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	hasAccess, err := s.resolver.HasAccess(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return FromModel(video, hasAccess), nil
}

func (s *service) Create(ctx context.Context, req CreateVideoRequest) (*VideoDTO, error) {
	video, err := s.catalog.Create(ctx, &models.Video{
		Title:           req.Title,
		Description:     req.Description,
		VideoURL:        req.VideoURL,
		ThumbnailURL:    req.ThumbnailURL,
		PriceMinor:      req.PriceMinor,
		DurationSeconds: req.DurationSeconds,
		Category:        req.Category,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create video")
	}
	return FromModel(video, true), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateVideoRequest) (*VideoDTO, error) {
	video, err := s.findVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		video.Title = *req.Title
	}
	if req.Description != nil {
		video.Description = *req.Description
	}
	if req.VideoURL != nil {
		video.VideoURL = *req.VideoURL
	}
	if req.ThumbnailURL != nil {
		video.ThumbnailURL = req.ThumbnailURL
	}
	if req.PriceMinor != nil {
		video.PriceMinor = *req.PriceMinor
	}
	if req.DurationSeconds != nil {
		video.DurationSeconds = req.DurationSeconds
	}
	if req.Category != nil {
		video.Category = req.Category
	}

	if err := s.catalog.Save(ctx, video); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update video")
	}
	return FromModel(video, true), nil
}

// Delete removes a video together with its purchase history so the ledger
// never references a missing catalog entry.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.findVideo(ctx, id); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).DeletePurchasesByVideo(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete purchases")
		}
		if err := s.catalog.WithTx(tx).Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete video")
		}
		return nil
	})
}

func (s *service) findVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	video, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup video")
	}
	return video, nil
}
