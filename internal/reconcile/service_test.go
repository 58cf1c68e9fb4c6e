package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/internal/ledger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	"github.com/adjeibohyen/tutorhub-backend/pkg/enums"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
)

type markCall struct {
	reference string
	status    enums.PurchaseStatus
}

type stubLedgerRepo struct {
	purchase  *models.Purchase
	markErr   error
	markCalls []markCall

	upserted  []*models.Subscription
	upsertErr error
}

func (s *stubLedgerRepo) WithTx(_ *gorm.DB) ledger.Repository { return s }

func (s *stubLedgerRepo) CreatePendingPurchase(_ context.Context, p *models.Purchase) (*models.Purchase, error) {
	return p, nil
}

func (s *stubLedgerRepo) FindPurchaseByReference(_ context.Context, _ string) (*models.Purchase, error) {
	if s.purchase == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.purchase, nil
}

func (s *stubLedgerRepo) FindSuccessPurchase(_ context.Context, _, _ uuid.UUID) (*models.Purchase, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLedgerRepo) ListSuccessPurchasesByUser(_ context.Context, _ uuid.UUID) ([]models.Purchase, error) {
	return nil, nil
}

func (s *stubLedgerRepo) MarkPurchaseByReference(_ context.Context, reference string, to enums.PurchaseStatus) (*models.Purchase, error) {
	s.markCalls = append(s.markCalls, markCall{reference: reference, status: to})
	if s.markErr != nil {
		return s.purchase, s.markErr
	}
	if s.purchase == nil {
		return nil, gorm.ErrRecordNotFound
	}
	s.purchase.Status = to
	return s.purchase, nil
}

func (s *stubLedgerRepo) DeletePurchasesByVideo(_ context.Context, _ uuid.UUID) error { return nil }

func (s *stubLedgerRepo) UpsertSubscription(_ context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserted = append(s.upserted, sub)
	return sub, nil
}

func (s *stubLedgerRepo) FindValidSubscription(_ context.Context, _ uuid.UUID, _ time.Time) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubUsers struct {
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
}

func newStubUsers(users ...*models.User) *stubUsers {
	s := &stubUsers{byID: map[uuid.UUID]*models.User{}, byEmail: map[string]*models.User{}}
	for _, u := range users {
		s.byID[u.ID] = u
		s.byEmail[u.Email] = u
	}
	return s
}

func (s *stubUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubVerifier struct {
	data *paystack.VerifyData
	err  error
}

func (s *stubVerifier) VerifyTransaction(_ context.Context, _ string) (*paystack.VerifyData, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func buildEngine(t *testing.T, ledgerRepo *stubLedgerRepo, users *stubUsers, verifier *stubVerifier) Service {
	t.Helper()
	if users == nil {
		users = newStubUsers()
	}
	if verifier == nil {
		verifier = &stubVerifier{}
	}
	svc, err := NewService(ServiceParams{
		Ledger:  ledgerRepo,
		Users:   users,
		Gateway: verifier,
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return svc
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestReconcileByRedirectSuccess(t *testing.T) {
	videoID := uuid.New()
	ledgerRepo := &stubLedgerRepo{purchase: &models.Purchase{
		VideoID:           videoID,
		PaystackReference: "TXN_1",
		Status:            enums.PurchaseStatusPending,
	}}
	verifier := &stubVerifier{data: &paystack.VerifyData{Status: "success", Reference: "TXN_1"}}
	svc := buildEngine(t, ledgerRepo, nil, verifier)

	outcome, err := svc.ReconcileByRedirect(context.Background(), "TXN_1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !outcome.Succeeded || outcome.VideoID != videoID {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(ledgerRepo.markCalls) != 1 || ledgerRepo.markCalls[0].status != enums.PurchaseStatusSuccess {
		t.Fatalf("unexpected ledger calls %+v", ledgerRepo.markCalls)
	}
}

func TestReconcileByRedirectFailed(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{purchase: &models.Purchase{
		PaystackReference: "TXN_2",
		Status:            enums.PurchaseStatusPending,
	}}
	verifier := &stubVerifier{data: &paystack.VerifyData{Status: "abandoned", Reference: "TXN_2"}}
	svc := buildEngine(t, ledgerRepo, nil, verifier)

	outcome, err := svc.ReconcileByRedirect(context.Background(), "TXN_2")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !outcome.Failed || outcome.Succeeded {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if ledgerRepo.markCalls[0].status != enums.PurchaseStatusFailed {
		t.Fatalf("expected failed transition, got %+v", ledgerRepo.markCalls)
	}
}

func TestReconcileByRedirectVerifierDownLeavesPending(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{purchase: &models.Purchase{Status: enums.PurchaseStatusPending}}
	verifier := &stubVerifier{err: pkgerrors.New(pkgerrors.CodeDependency, "paystack unreachable")}
	svc := buildEngine(t, ledgerRepo, nil, verifier)

	_, err := svc.ReconcileByRedirect(context.Background(), "TXN_3")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(ledgerRepo.markCalls) != 0 {
		t.Fatal("an unreachable verifier must never settle the row")
	}
}

func TestReconcileByRedirectUnknownReference(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	verifier := &stubVerifier{data: &paystack.VerifyData{Status: "success", Reference: "TXN_ghost"}}
	svc := buildEngine(t, ledgerRepo, nil, verifier)

	_, err := svc.ReconcileByRedirect(context.Background(), "TXN_ghost")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReconcileByRedirectUnsettledStatus(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{purchase: &models.Purchase{Status: enums.PurchaseStatusPending}}
	verifier := &stubVerifier{data: &paystack.VerifyData{Status: "ongoing", Reference: "TXN_4"}}
	svc := buildEngine(t, ledgerRepo, nil, verifier)

	outcome, err := svc.ReconcileByRedirect(context.Background(), "TXN_4")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if outcome.Succeeded || outcome.Failed {
		t.Fatalf("unsettled verify must not settle the row: %+v", outcome)
	}
	if len(ledgerRepo.markCalls) != 0 {
		t.Fatal("expected no ledger transition")
	}
}

func TestReconcileByRedirectSubscriptionSkipsLedger(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	verifier := &stubVerifier{data: &paystack.VerifyData{
		Status:    "success",
		Reference: "TXN_sub",
		Metadata:  paystack.Metadata{Subscription: true},
	}}
	svc := buildEngine(t, ledgerRepo, nil, verifier)

	outcome, err := svc.ReconcileByRedirect(context.Background(), "TXN_sub")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !outcome.Succeeded || !outcome.Subscription {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(ledgerRepo.markCalls) != 0 {
		t.Fatal("subscription charges settle no purchase row")
	}
}

func TestWebhookChargeSuccessApplied(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{purchase: &models.Purchase{
		PaystackReference: "TXN_5",
		Status:            enums.PurchaseStatusPending,
	}}
	svc := buildEngine(t, ledgerRepo, nil, nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventChargeSuccess,
		Data:  mustRaw(t, paystack.ChargeEventData{Reference: "TXN_5", Status: "success"}),
	})
	if err != nil {
		t.Fatalf("reconcile webhook: %v", err)
	}
	if len(ledgerRepo.markCalls) != 1 || ledgerRepo.markCalls[0].status != enums.PurchaseStatusSuccess {
		t.Fatalf("unexpected ledger calls %+v", ledgerRepo.markCalls)
	}
}

func TestWebhookChargeSuccessUnknownReferenceAcked(t *testing.T) {
	svc := buildEngine(t, &stubLedgerRepo{}, nil, nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventChargeSuccess,
		Data:  mustRaw(t, paystack.ChargeEventData{Reference: "TXN_ghost"}),
	})
	if err != nil {
		t.Fatalf("unknown references must be acked, got %v", err)
	}
}

func TestWebhookChargeSuccessSubscriptionChargeIgnored(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, nil, nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventChargeSuccess,
		Data: mustRaw(t, paystack.ChargeEventData{
			Reference: "TXN_sub",
			Metadata:  paystack.Metadata{Subscription: true},
		}),
	})
	if err != nil {
		t.Fatalf("reconcile webhook: %v", err)
	}
	if len(ledgerRepo.markCalls) != 0 {
		t.Fatal("subscription charges settle no purchase row")
	}
}

func TestWebhookChargeSuccessMalformedPayloadAcked(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, nil, nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventChargeSuccess,
		Data:  json.RawMessage(`{"reference":42}`),
	})
	if err != nil {
		t.Fatalf("undecodable payloads must be acked, got %v", err)
	}
	if len(ledgerRepo.markCalls) != 0 {
		t.Fatal("undecodable payloads must not touch the ledger")
	}
}

func TestWebhookChargeSuccessEmptyMetadataStringAcked(t *testing.T) {
	// Charges initialized outside this system arrive with metadata as ""
	// rather than an object.
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, nil, nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventChargeSuccess,
		Data:  json.RawMessage(`{"reference":"TXN_foreign","metadata":""}`),
	})
	if err != nil {
		t.Fatalf("foreign charge events must be acked, got %v", err)
	}
	if len(ledgerRepo.markCalls) != 0 {
		t.Fatal("foreign charge events must not touch the ledger")
	}
}

func TestWebhookSubscriptionMalformedPayloadAcked(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, newStubUsers(), nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventSubscriptionCreate,
		Data:  json.RawMessage(`{"plan":42}`),
	})
	if err != nil {
		t.Fatalf("undecodable payloads must be acked, got %v", err)
	}
	if len(ledgerRepo.upserted) != 0 {
		t.Fatal("undecodable payloads must not upsert subscriptions")
	}
}

func TestWebhookSubscriptionCreate(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "sub@example.com"}
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, newStubUsers(user), nil)

	next := "2026-09-30T00:00:00.000Z"
	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventSubscriptionCreate,
		Data: mustRaw(t, paystack.SubscriptionEventData{
			SubscriptionCode: "SUB_1",
			Status:           "active",
			Plan:             paystack.EventPlan{PlanCode: "PLN_monthly"},
			Customer:         paystack.Customer{Email: "sub@example.com", CustomerCode: "CUS_1"},
			Metadata:         paystack.Metadata{UserID: user.ID.String()},
			CreatedAt:        "2026-08-30T00:00:00.000Z",
			NextPaymentDate:  &next,
		}),
	})
	if err != nil {
		t.Fatalf("reconcile webhook: %v", err)
	}

	if len(ledgerRepo.upserted) != 1 {
		t.Fatalf("expected one upsert, got %d", len(ledgerRepo.upserted))
	}
	sub := ledgerRepo.upserted[0]
	if sub.UserID != user.ID || sub.PlanCode != "PLN_monthly" {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", sub.Status)
	}
	if sub.CurrentPeriodStart == nil || sub.CurrentPeriodEnd == nil {
		t.Fatalf("expected parsed period bounds, got %+v", sub)
	}
	if sub.PaystackSubscriptionCode == nil || *sub.PaystackSubscriptionCode != "SUB_1" {
		t.Fatalf("expected subscription code, got %+v", sub.PaystackSubscriptionCode)
	}
}

func TestWebhookSubscriptionEmailFallback(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "fallback@example.com"}
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, newStubUsers(user), nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventSubscriptionDisable,
		Data: mustRaw(t, paystack.SubscriptionEventData{
			Status:   "cancelled",
			Plan:     paystack.EventPlan{PlanCode: "PLN_monthly"},
			Customer: paystack.Customer{Email: "Fallback@Example.com"},
		}),
	})
	if err != nil {
		t.Fatalf("reconcile webhook: %v", err)
	}
	if len(ledgerRepo.upserted) != 1 {
		t.Fatalf("expected upsert via email fallback, got %d", len(ledgerRepo.upserted))
	}
	if ledgerRepo.upserted[0].Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", ledgerRepo.upserted[0].Status)
	}
}

func TestWebhookSubscriptionUnresolvableUserDropped(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, newStubUsers(), nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventSubscriptionCreate,
		Data: mustRaw(t, paystack.SubscriptionEventData{
			Status:   "active",
			Plan:     paystack.EventPlan{PlanCode: "PLN_monthly"},
			Customer: paystack.Customer{Email: "stranger@example.com"},
		}),
	})
	if err != nil {
		t.Fatalf("unattributable events must be acked, got %v", err)
	}
	if len(ledgerRepo.upserted) != 0 {
		t.Fatal("expected no upsert for unknown user")
	}
}

func TestWebhookSubscriptionUnknownStatusMapsPastDue(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "sub@example.com"}
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, newStubUsers(user), nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: paystack.EventInvoiceUpdate,
		Data: mustRaw(t, paystack.SubscriptionEventData{
			Status:   "attention",
			Plan:     paystack.EventPlan{PlanCode: "PLN_monthly"},
			Metadata: paystack.Metadata{UserID: user.ID.String()},
		}),
	})
	if err != nil {
		t.Fatalf("reconcile webhook: %v", err)
	}
	if ledgerRepo.upserted[0].Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", ledgerRepo.upserted[0].Status)
	}
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	ledgerRepo := &stubLedgerRepo{}
	svc := buildEngine(t, ledgerRepo, nil, nil)

	err := svc.ReconcileWebhookEvent(context.Background(), paystack.Event{
		Event: "transfer.success",
		Data:  json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("unknown events must be acked, got %v", err)
	}
	if len(ledgerRepo.markCalls) != 0 || len(ledgerRepo.upserted) != 0 {
		t.Fatal("unknown events must touch nothing")
	}
}
