package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adjeibohyen/tutorhub-backend/api/responses"
	"github.com/adjeibohyen/tutorhub-backend/internal/reconcile"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
)

type PaystackWebhookService interface {
	ReconcileWebhookEvent(ctx context.Context, event paystack.Event) error
}

type paystackWebhookGuard interface {
	CheckAndMark(ctx context.Context, digest string) (bool, error)
	Delete(ctx context.Context, digest string) error
}

type paystackClient interface {
	SigningSecret() string
}

// PaystackWebhook ingests processor events. The signature is checked
// over the raw body before any parsing; a bad signature is a hard
// reject so the processor never treats a forged delivery as accepted.
func PaystackWebhook(svc PaystackWebhookService, client paystackClient, guard paystackWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paystack client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(paystack.SignatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing"))
			return
		}
		if !paystack.VerifySignature(client.SigningSecret(), payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch"))
			return
		}

		digest := reconcile.BodyDigest(payload)
		alreadyProcessed, err := guard.CheckAndMark(ctx, digest)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, map[string]bool{"received": true})
			return
		}

		var event paystack.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			_ = guard.Delete(ctx, digest)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed event payload"))
			return
		}

		if err := svc.ReconcileWebhookEvent(ctx, event); err != nil {
			_ = guard.Delete(ctx, digest)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paystack event %s processed", event.Event))
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
