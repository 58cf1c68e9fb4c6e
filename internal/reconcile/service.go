package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adjeibohyen/tutorhub-backend/internal/ledger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db/models"
	"github.com/adjeibohyen/tutorhub-backend/pkg/enums"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/metrics"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
)

// RedirectOutcome is what the verify controller turns into a redirect.
type RedirectOutcome struct {
	Reference    string
	Succeeded    bool
	Failed       bool
	Subscription bool
	VideoID      uuid.UUID
}

// Service is the convergence point for the two delivery paths: the buyer's
// redirect and the processor's webhook. Both funnel into the same ledger
// transitions, so whichever arrives first settles the row and the other
// becomes a no-op.
type Service interface {
	ReconcileByRedirect(ctx context.Context, reference string) (*RedirectOutcome, error)
	ReconcileWebhookEvent(ctx context.Context, event paystack.Event) error
}

type processorVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyData, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type service struct {
	ledger  ledger.Repository
	users   userDirectory
	gateway processorVerifier
	metrics *metrics.ReconcileMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// ServiceParams bundles the dependencies required to build the engine.
type ServiceParams struct {
	Ledger  ledger.Repository
	Users   userDirectory
	Gateway processorVerifier
	Metrics *metrics.ReconcileMetrics
	Logger  *logger.Logger

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewService constructs the reconciliation engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("processor verifier is required")
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
		users:   params.Users,
		gateway: params.Gateway,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// ReconcileByRedirect settles a reference from the buyer's return leg. The
// processor's verify endpoint is the source of truth; an unreachable
// processor leaves the row pending rather than guessing an outcome.
func (s *service) ReconcileByRedirect(ctx context.Context, reference string) (*RedirectOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	ctx = s.logg.WithReference(ctx, reference)

	started := s.now()
	data, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		s.metrics.ObserveVerify("error", s.now().Sub(started))
		s.metrics.IncOutcome("redirect", "verify_error")
		return nil, err
	}
	s.metrics.ObserveVerify(data.Status, s.now().Sub(started))

	outcome := &RedirectOutcome{
		Reference:    reference,
		Subscription: data.Metadata.Subscription,
	}

	switch {
	case data.Succeeded():
		outcome.Succeeded = true
		if outcome.Subscription {
			// the subscription projection is written by the webhook path
			s.metrics.IncOutcome("redirect", "subscription_success")
			return outcome, nil
		}
		purchase, err := s.settlePurchase(ctx, reference, enums.PurchaseStatusSuccess)
		if err != nil {
			s.metrics.IncOutcome("redirect", "error")
			return nil, err
		}
		outcome.VideoID = purchase.VideoID
		s.metrics.IncOutcome("redirect", "success")
		return outcome, nil

	case data.Failed():
		outcome.Failed = true
		if outcome.Subscription {
			s.metrics.IncOutcome("redirect", "subscription_failed")
			return outcome, nil
		}
		purchase, err := s.settlePurchase(ctx, reference, enums.PurchaseStatusFailed)
		if err != nil {
			s.metrics.IncOutcome("redirect", "error")
			return nil, err
		}
		outcome.VideoID = purchase.VideoID
		s.metrics.IncOutcome("redirect", "failed")
		return outcome, nil

	default:
		// the processor has not settled yet; the row stays pending
		s.logg.Warn(ctx, fmt.Sprintf("verify returned unsettled status %q", data.Status))
		s.metrics.IncOutcome("redirect", "unsettled")
		return outcome, nil
	}
}

// settlePurchase applies a terminal outcome, tolerating re-delivery of the
// same outcome. An unknown reference or a contradictory outcome surfaces as
// a coded error for the caller to report.
func (s *service) settlePurchase(ctx context.Context, reference string, to enums.PurchaseStatus) (*models.Purchase, error) {
	purchase, err := s.ledger.MarkPurchaseByReference(ctx, reference, to)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "processor reported a reference the ledger has never seen")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown reference")
		}
		return nil, err
	}
	return purchase, nil
}

// ReconcileWebhookEvent applies a verified processor event. Events the
// platform cannot act on are acknowledged and dropped: returning an error
// would make the processor redeliver a payload that will never apply.
func (s *service) ReconcileWebhookEvent(ctx context.Context, event paystack.Event) error {
	switch {
	case event.Event == paystack.EventChargeSuccess:
		return s.applyChargeSuccess(ctx, event.Data)

	case paystack.IsSubscriptionLifecycle(event.Event):
		return s.applySubscriptionEvent(ctx, event.Event, event.Data)

	default:
		s.logg.Debug(ctx, fmt.Sprintf("ignoring webhook event %q", event.Event))
		s.metrics.IncWebhook(event.Event, "ignored")
		return nil
	}
}

func (s *service) applyChargeSuccess(ctx context.Context, raw json.RawMessage) error {
	var data paystack.ChargeEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		// seen in the wild: charges initialized outside this system carry
		// metadata as "" instead of an object. Redelivery cannot fix a
		// payload that does not parse, so ack and drop.
		s.logg.Warn(ctx, fmt.Sprintf("undecodable charge event payload, dropping: %v", err))
		s.metrics.IncWebhook(paystack.EventChargeSuccess, "malformed")
		return nil
	}

	reference := strings.TrimSpace(data.Reference)
	if reference == "" {
		s.logg.Warn(ctx, "charge event without a reference, dropping")
		s.metrics.IncWebhook(paystack.EventChargeSuccess, "dropped")
		return nil
	}
	ctx = s.logg.WithReference(ctx, reference)

	if data.Metadata.Subscription {
		// the initial subscription charge settles no purchase row
		s.metrics.IncWebhook(paystack.EventChargeSuccess, "subscription_charge")
		return nil
	}

	_, err := s.ledger.MarkPurchaseByReference(ctx, reference, enums.PurchaseStatusSuccess)
	switch {
	case err == nil:
		s.metrics.IncWebhook(paystack.EventChargeSuccess, "applied")
		s.metrics.IncOutcome("webhook", "success")
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logg.Warn(ctx, "charge event for a reference the ledger has never seen, dropping")
		s.metrics.IncWebhook(paystack.EventChargeSuccess, "unknown_reference")
		return nil
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		s.logg.Error(ctx, "charge event contradicts a settled purchase", err)
		s.metrics.IncWebhook(paystack.EventChargeSuccess, "conflict")
		return nil
	default:
		s.metrics.IncWebhook(paystack.EventChargeSuccess, "error")
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle purchase")
	}
}

func (s *service) applySubscriptionEvent(ctx context.Context, eventType string, raw json.RawMessage) error {
	var data paystack.SubscriptionEventData
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("undecodable %s payload, dropping: %v", eventType, err))
		s.metrics.IncWebhook(eventType, "malformed")
		return nil
	}

	user, err := s.resolveUser(ctx, data.Metadata.UserID, data.Customer.Email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logg.Warn(ctx, fmt.Sprintf("subscription event %q matches no known user, dropping", eventType))
		s.metrics.IncWebhook(eventType, "unresolved_user")
		return nil
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	planCode := strings.TrimSpace(data.Plan.PlanCode)
	if planCode == "" {
		s.logg.Warn(ctx, fmt.Sprintf("subscription event %q carries no plan code, dropping", eventType))
		s.metrics.IncWebhook(eventType, "missing_plan")
		return nil
	}

	sub := &models.Subscription{
		UserID:   user.ID,
		Status:   enums.MapProcessorSubscriptionStatus(data.Status),
		PlanCode: planCode,
	}
	if code := strings.TrimSpace(data.SubscriptionCode); code != "" {
		sub.PaystackSubscriptionCode = &code
	}
	if code := strings.TrimSpace(data.Customer.CustomerCode); code != "" {
		sub.PaystackCustomerID = &code
	}
	if start := parseProcessorTime(data.CreatedAt); start != nil {
		sub.CurrentPeriodStart = start
	}
	if data.NextPaymentDate != nil {
		sub.CurrentPeriodEnd = parseProcessorTime(*data.NextPaymentDate)
	}

	if _, err := s.ledger.UpsertSubscription(ctx, sub); err != nil {
		s.metrics.IncWebhook(eventType, "error")
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert subscription")
	}

	s.logg.Info(ctx, fmt.Sprintf("subscription event %q applied as %s", eventType, sub.Status))
	s.metrics.IncWebhook(eventType, "applied")
	return nil
}

// resolveUser maps a processor event to a platform user, preferring the
// metadata echo and falling back to the customer email. A nil user with nil
// error means the event is unattributable.
func (s *service) resolveUser(ctx context.Context, metadataUserID, email string) (*models.User, error) {
	if id, err := uuid.Parse(strings.TrimSpace(metadataUserID)); err == nil && id != uuid.Nil {
		user, err := s.users.FindByID(ctx, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user by id")
		}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user by email")
	}
	return user, nil
}

func parseProcessorTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}
