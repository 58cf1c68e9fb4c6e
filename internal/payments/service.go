package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/internal/ledger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/config"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
)

// Service opens transactions with the processor. The ledger row is always
// written before the processor is contacted, so every reference the
// processor can ever echo back already has a home row.
type Service interface {
	InitializeOneOff(ctx context.Context, userID uuid.UUID, email string, videoID uuid.UUID) (*InitializeResponse, error)
	InitializeSubscription(ctx context.Context, userID uuid.UUID, email string) (*InitializeResponse, error)
	PlanStatus(ctx context.Context) (*PlanStatus, error)
}

type processorGateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeData, error)
	FetchPlan(ctx context.Context, planCode string) (*paystack.Plan, error)
	ListPlans(ctx context.Context) ([]paystack.Plan, error)
}

type catalogReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}

type service struct {
	ledger  ledger.Repository
	catalog catalogReader
	gateway processorGateway
	cfg     config.PaystackConfig
	baseURL string
	logg    *logger.Logger
	now     func() time.Time
}

// ServiceParams bundles the dependencies required to build a payments service.
type ServiceParams struct {
	Ledger         ledger.Repository
	Catalog        catalogReader
	Gateway        processorGateway
	PaystackConfig config.PaystackConfig
	AppBaseURL     string
	Logger         *logger.Logger

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewService constructs a payments service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader is required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("processor gateway is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		ledger:  params.Ledger,
		catalog: params.Catalog,
		gateway: params.Gateway,
		cfg:     params.PaystackConfig,
		baseURL: strings.TrimRight(params.AppBaseURL, "/"),
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) InitializeOneOff(ctx context.Context, userID uuid.UUID, email string, videoID uuid.UUID) (*InitializeResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	video, err := s.catalog.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup video")
	}
	if video.PriceMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "video has no purchasable price")
	}

	if _, err := s.ledger.FindSuccessPurchase(ctx, userID, videoID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "video already purchased")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check purchase")
	}

	reference := s.mintReference(userID)
	ctx = s.logg.WithReference(ctx, reference)

	if _, err := s.ledger.CreatePendingPurchase(ctx, &models.Purchase{
		UserID:            userID,
		VideoID:           videoID,
		AmountPaid:        video.PriceMinor,
		PaystackReference: reference,
	}); err != nil {
		return nil, err
	}

	data, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      video.PriceMinor,
		Reference:   reference,
		CallbackURL: s.verifyCallbackURL(),
		Metadata: paystack.Metadata{
			UserID:  userID.String(),
			VideoID: videoID.String(),
		},
	})
	if err != nil {
		// the pending row stays behind; a later webhook or verify settles it
		s.logg.Error(ctx, "processor initialize failed, pending row retained", err)
		return nil, err
	}

	s.logg.Info(ctx, "one-off transaction opened")
	return &InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (s *service) InitializeSubscription(ctx context.Context, userID uuid.UUID, email string) (*InitializeResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	planCode, err := s.configuredPlan()
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.FindValidSubscription(ctx, userID, s.now().UTC()); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "subscription already active")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check subscription")
	}

	plan, err := s.gateway.FetchPlan(ctx, planCode)
	if err != nil {
		// a plan we cannot verify upstream is a deployment problem, not
		// a buyer problem
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "configured subscription plan is not verifiable upstream")
	}

	// the processor requires an explicit amount even when a plan is attached
	amount := plan.Amount
	if amount <= 0 {
		amount = s.cfg.SubscriptionAmount
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription amount is not configured")
	}

	data, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      amount,
		Plan:        planCode,
		CallbackURL: s.verifyCallbackURL(),
		Metadata: paystack.Metadata{
			UserID:       userID.String(),
			Subscription: true,
		},
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithReference(ctx, data.Reference), "subscription transaction opened")
	return &InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (s *service) PlanStatus(ctx context.Context) (*PlanStatus, error) {
	planCode, err := s.configuredPlan()
	if err != nil {
		return nil, err
	}
	plans, err := s.gateway.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	status := &PlanStatus{
		PlanCode: planCode,
		AllPlans: make([]PlanEntry, 0, len(plans)),
		KeyMode:  s.cfg.KeyMode(),
	}
	for _, p := range plans {
		entry := PlanEntry{
			PlanCode: p.PlanCode,
			Name:     p.Name,
			Amount:   p.Amount,
			Interval: p.Interval,
			Status:   p.Status,
		}
		status.AllPlans = append(status.AllPlans, entry)
		if p.PlanCode == planCode {
			configured := entry
			status.Plan = &configured
			status.PlanFound = true
		}
	}
	return status, nil
}

func (s *service) configuredPlan() (string, error) {
	planCode := strings.TrimSpace(s.cfg.SubscriptionPlan)
	if planCode == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "subscription plan is not configured")
	}
	if !paystack.ValidPlanCode(planCode) {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "configured subscription plan code is malformed")
	}
	return planCode, nil
}

// mintReference builds a reference that is unique per attempt and traceable
// to the buyer. The short uuid tail disambiguates two clicks that land in
// the same millisecond.
func (s *service) mintReference(userID uuid.UUID) string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("TXN_%d_%s_%s", s.now().UnixMilli(), userID.String()[:8], entropy)
}

func (s *service) verifyCallbackURL() string {
	if s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/api/v1/payments/verify"
}
