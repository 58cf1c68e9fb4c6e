package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/adjeibohyen/tutorhub-backend/api/middleware"
	"github.com/adjeibohyen/tutorhub-backend/api/responses"
	"github.com/adjeibohyen/tutorhub-backend/api/validators"
	"github.com/adjeibohyen/tutorhub-backend/internal/payments"
	"github.com/adjeibohyen/tutorhub-backend/internal/reconcile"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
)

// RedirectReconciler is the slice of the reconcile engine the verify
// landing needs.
type RedirectReconciler interface {
	ReconcileByRedirect(ctx context.Context, reference string) (*reconcile.RedirectOutcome, error)
}

// PaymentInitialize opens a one-off transaction for the authenticated buyer.
func PaymentInitialize(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		viewer := middleware.ViewerFromContext(r.Context())
		if !viewer.Authenticated {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body payments.InitializeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		email := middleware.EmailFromContext(r.Context())
		result, err := svc.InitializeOneOff(r.Context(), viewer.UserID, email, body.VideoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// PaymentVerify lands the buyer's browser after the processor checkout.
// The response is always a redirect; failures are tagged in the query
// string so the frontend can surface them.
func PaymentVerify(engine RedirectReconciler, baseURL string, logg *logger.Logger) http.HandlerFunc {
	base := strings.TrimRight(baseURL, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if engine == nil {
			http.Redirect(w, r, base+"/dashboard?error=verification_failed", http.StatusFound)
			return
		}

		reference := strings.TrimSpace(r.URL.Query().Get("reference"))
		if reference == "" {
			http.Redirect(w, r, base+"/dashboard?error=invalid_reference", http.StatusFound)
			return
		}

		if logg != nil {
			ctx = logg.WithReference(ctx, reference)
		}

		outcome, err := engine.ReconcileByRedirect(ctx, reference)
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "redirect verification failed", err)
			}
			switch {
			case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
				http.Redirect(w, r, base+"/dashboard?error=invalid_reference", http.StatusFound)
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
				http.Redirect(w, r, base+"/dashboard?error=database_error", http.StatusFound)
			default:
				http.Redirect(w, r, base+"/dashboard?error=verification_failed", http.StatusFound)
			}
			return
		}

		if !outcome.Succeeded {
			http.Redirect(w, r, base+"/dashboard?error=payment_failed", http.StatusFound)
			return
		}

		if !outcome.Subscription && outcome.VideoID != uuid.Nil {
			http.Redirect(w, r, base+"/videos/"+outcome.VideoID.String()+"?payment=success", http.StatusFound)
			return
		}
		http.Redirect(w, r, base+"/dashboard?payment=success", http.StatusFound)
	}
}
