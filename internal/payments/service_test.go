package payments

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/internal/ledger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/config"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	"github.com/adjeibohyen/tutorhub-backend/pkg/enums"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
)

type stubLedgerRepo struct {
	pending      []*models.Purchase
	success      *models.Purchase
	subscription *models.Subscription
	createErr    error
}

func (s *stubLedgerRepo) WithTx(_ *gorm.DB) ledger.Repository { return s }

func (s *stubLedgerRepo) CreatePendingPurchase(_ context.Context, p *models.Purchase) (*models.Purchase, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	p.Status = enums.PurchaseStatusPending
	s.pending = append(s.pending, p)
	return p, nil
}

func (s *stubLedgerRepo) FindPurchaseByReference(_ context.Context, _ string) (*models.Purchase, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLedgerRepo) FindSuccessPurchase(_ context.Context, _, _ uuid.UUID) (*models.Purchase, error) {
	if s.success == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.success, nil
}

func (s *stubLedgerRepo) ListSuccessPurchasesByUser(_ context.Context, _ uuid.UUID) ([]models.Purchase, error) {
	return nil, nil
}

func (s *stubLedgerRepo) MarkPurchaseByReference(_ context.Context, _ string, _ enums.PurchaseStatus) (*models.Purchase, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLedgerRepo) DeletePurchasesByVideo(_ context.Context, _ uuid.UUID) error { return nil }

func (s *stubLedgerRepo) UpsertSubscription(_ context.Context, sub *models.Subscription) (*models.Subscription, error) {
	return sub, nil
}

func (s *stubLedgerRepo) FindValidSubscription(_ context.Context, _ uuid.UUID, now time.Time) (*models.Subscription, error) {
	if s.subscription != nil && s.subscription.ValidAt(now) {
		return s.subscription, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubCatalog struct {
	video *models.Video
}

func (s *stubCatalog) FindByID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	if s.video != nil && s.video.ID == id {
		return s.video, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubGateway struct {
	initData    *paystack.InitializeData
	initErr     error
	lastInit    *paystack.InitializeRequest
	plan        *paystack.Plan
	planErr     error
	fetchedPlan string
	allPlans    []paystack.Plan
	listErr     error
	listCalls   int
}

func (s *stubGateway) InitializeTransaction(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeData, error) {
	s.lastInit = &req
	if s.initErr != nil {
		return nil, s.initErr
	}
	if s.initData != nil {
		return s.initData, nil
	}
	return &paystack.InitializeData{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "ac_test",
		Reference:        req.Reference,
	}, nil
}

func (s *stubGateway) FetchPlan(_ context.Context, planCode string) (*paystack.Plan, error) {
	s.fetchedPlan = planCode
	if s.planErr != nil {
		return nil, s.planErr
	}
	if s.plan != nil {
		return s.plan, nil
	}
	return &paystack.Plan{PlanCode: planCode, Name: "Monthly", Amount: 10000, Interval: "monthly", Status: "active"}, nil
}

func (s *stubGateway) ListPlans(_ context.Context) ([]paystack.Plan, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.allPlans, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

var testPaystackConfig = config.PaystackConfig{
	SecretKey:          "sk_test_abc",
	SubscriptionPlan:   "PLN_monthly",
	SubscriptionAmount: 10000,
}

func buildPaymentsService(t *testing.T, ledgerRepo *stubLedgerRepo, catalog *stubCatalog, gateway *stubGateway) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Ledger:         ledgerRepo,
		Catalog:        catalog,
		Gateway:        gateway,
		PaystackConfig: testPaystackConfig,
		AppBaseURL:     "https://tutorhub.example",
		Logger:         testLogger(),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestInitializeOneOff(t *testing.T) {
	userID := uuid.New()
	video := &models.Video{ID: uuid.New(), Title: "intro", VideoURL: "https://cdn/x", PriceMinor: 5000}
	ledgerRepo := &stubLedgerRepo{}
	gateway := &stubGateway{}
	svc := buildPaymentsService(t, ledgerRepo, &stubCatalog{video: video}, gateway)

	resp, err := svc.InitializeOneOff(context.Background(), userID, "Buyer@Example.com", video.ID)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if len(ledgerRepo.pending) != 1 {
		t.Fatalf("expected one pending row, got %d", len(ledgerRepo.pending))
	}
	row := ledgerRepo.pending[0]
	if row.AmountPaid != 5000 || row.Status != enums.PurchaseStatusPending {
		t.Fatalf("unexpected ledger row %+v", row)
	}
	if !strings.HasPrefix(row.PaystackReference, "TXN_") {
		t.Fatalf("unexpected reference %q", row.PaystackReference)
	}
	if !strings.Contains(row.PaystackReference, userID.String()[:8]) {
		t.Fatalf("reference must embed the buyer id, got %q", row.PaystackReference)
	}

	if gateway.lastInit == nil {
		t.Fatal("expected processor call")
	}
	if gateway.lastInit.Email != "buyer@example.com" || gateway.lastInit.Amount != 5000 {
		t.Fatalf("unexpected processor request %+v", gateway.lastInit)
	}
	if gateway.lastInit.Metadata.VideoID != video.ID.String() {
		t.Fatalf("metadata must carry the video id, got %+v", gateway.lastInit.Metadata)
	}
	if gateway.lastInit.CallbackURL != "https://tutorhub.example/api/v1/payments/verify" {
		t.Fatalf("unexpected callback %q", gateway.lastInit.CallbackURL)
	}
	if resp.Reference != row.PaystackReference {
		t.Fatalf("response reference %q does not match ledger %q", resp.Reference, row.PaystackReference)
	}
}

func TestInitializeOneOffUnknownVideo(t *testing.T) {
	svc := buildPaymentsService(t, &stubLedgerRepo{}, &stubCatalog{}, &stubGateway{})

	_, err := svc.InitializeOneOff(context.Background(), uuid.New(), "a@b.c", uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInitializeOneOffFreeVideo(t *testing.T) {
	video := &models.Video{ID: uuid.New(), PriceMinor: 0}
	svc := buildPaymentsService(t, &stubLedgerRepo{}, &stubCatalog{video: video}, &stubGateway{})

	_, err := svc.InitializeOneOff(context.Background(), uuid.New(), "a@b.c", video.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitializeOneOffAlreadyPurchased(t *testing.T) {
	video := &models.Video{ID: uuid.New(), PriceMinor: 5000}
	ledgerRepo := &stubLedgerRepo{success: &models.Purchase{Status: enums.PurchaseStatusSuccess}}
	gateway := &stubGateway{}
	svc := buildPaymentsService(t, ledgerRepo, &stubCatalog{video: video}, gateway)

	_, err := svc.InitializeOneOff(context.Background(), uuid.New(), "a@b.c", video.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if gateway.lastInit != nil {
		t.Fatal("processor must not be called for an owned video")
	}
}

func TestInitializeOneOffProcessorDownLeavesPending(t *testing.T) {
	video := &models.Video{ID: uuid.New(), PriceMinor: 5000}
	ledgerRepo := &stubLedgerRepo{}
	gateway := &stubGateway{initErr: pkgerrors.New(pkgerrors.CodeDependency, "paystack unreachable")}
	svc := buildPaymentsService(t, ledgerRepo, &stubCatalog{video: video}, gateway)

	_, err := svc.InitializeOneOff(context.Background(), uuid.New(), "a@b.c", video.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(ledgerRepo.pending) != 1 {
		t.Fatal("the pending row must stay behind for later reconciliation")
	}
}

func TestInitializeSubscription(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	gateway := &stubGateway{}
	svc := buildPaymentsService(t, ledgerRepo, &stubCatalog{}, gateway)

	userID := uuid.New()
	_, err := svc.InitializeSubscription(context.Background(), userID, "sub@example.com")
	if err != nil {
		t.Fatalf("initialize subscription: %v", err)
	}
	if gateway.fetchedPlan != "PLN_monthly" {
		t.Fatalf("expected plan verification, got %q", gateway.fetchedPlan)
	}
	if gateway.lastInit.Plan != "PLN_monthly" {
		t.Fatalf("expected plan on request, got %q", gateway.lastInit.Plan)
	}
	if gateway.lastInit.Amount != 10000 {
		t.Fatalf("expected explicit amount alongside plan, got %d", gateway.lastInit.Amount)
	}
	if !gateway.lastInit.Metadata.Subscription {
		t.Fatal("metadata must flag subscription transactions")
	}
}

func TestInitializeSubscriptionUnverifiablePlanIsMisconfiguration(t *testing.T) {
	gateway := &stubGateway{planErr: pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")}
	svc := buildPaymentsService(t, &stubLedgerRepo{}, &stubCatalog{}, gateway)

	_, err := svc.InitializeSubscription(context.Background(), uuid.New(), "sub@example.com")
	if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal misconfiguration, got %v", err)
	}
	if gateway.lastInit != nil {
		t.Fatal("no transaction may open against an unverifiable plan")
	}
}

func TestInitializeSubscriptionAlreadyActive(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{
		subscription: &models.Subscription{Status: enums.SubscriptionStatusActive},
	}
	svc := buildPaymentsService(t, ledgerRepo, &stubCatalog{}, &stubGateway{})

	_, err := svc.InitializeSubscription(context.Background(), uuid.New(), "sub@example.com")
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestInitializeSubscriptionMisconfiguredPlan(t *testing.T) {
	for _, plan := range []string{"", "monthly", "pln_monthly"} {
		cfg := testPaystackConfig
		cfg.SubscriptionPlan = plan
		svc, err := NewService(ServiceParams{
			Ledger:         &stubLedgerRepo{},
			Catalog:        &stubCatalog{},
			Gateway:        &stubGateway{},
			PaystackConfig: cfg,
			Logger:         testLogger(),
		})
		if err != nil {
			t.Fatalf("build service: %v", err)
		}

		_, err = svc.InitializeSubscription(context.Background(), uuid.New(), "sub@example.com")
		if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
			t.Fatalf("plan %q: expected internal error, got %v", plan, err)
		}
	}
}

func TestPlanStatus(t *testing.T) {
	gateway := &stubGateway{allPlans: []paystack.Plan{
		{PlanCode: "PLN_other", Name: "Other", Amount: 5000, Interval: "weekly", Status: "active"},
		{PlanCode: "PLN_monthly", Name: "Monthly", Amount: 10000, Interval: "monthly", Status: "active"},
	}}
	svc := buildPaymentsService(t, &stubLedgerRepo{}, &stubCatalog{}, gateway)

	status, err := svc.PlanStatus(context.Background())
	if err != nil {
		t.Fatalf("plan status: %v", err)
	}
	if gateway.listCalls != 1 {
		t.Fatalf("expected one inventory fetch, got %d", gateway.listCalls)
	}
	if status.KeyMode != "test" {
		t.Fatalf("expected test mode, got %q", status.KeyMode)
	}
	if !status.PlanFound || status.Plan == nil {
		t.Fatalf("expected configured plan found, got %+v", status)
	}
	if status.Plan.Amount != 10000 || status.Plan.Interval != "monthly" {
		t.Fatalf("unexpected configured plan %+v", status.Plan)
	}
	if len(status.AllPlans) != 2 {
		t.Fatalf("expected full inventory, got %d plans", len(status.AllPlans))
	}
}

func TestPlanStatusConfiguredPlanMissingUpstream(t *testing.T) {
	gateway := &stubGateway{allPlans: []paystack.Plan{
		{PlanCode: "PLN_other", Name: "Other", Amount: 5000, Interval: "weekly", Status: "active"},
	}}
	svc := buildPaymentsService(t, &stubLedgerRepo{}, &stubCatalog{}, gateway)

	status, err := svc.PlanStatus(context.Background())
	if err != nil {
		t.Fatalf("plan status: %v", err)
	}
	if status.PlanFound || status.Plan != nil {
		t.Fatalf("expected configured plan absent, got %+v", status)
	}
	if len(status.AllPlans) != 1 {
		t.Fatalf("expected inventory still reported, got %d plans", len(status.AllPlans))
	}
}
