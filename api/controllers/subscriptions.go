package controllers

import (
	"net/http"

	"github.com/adjeibohyen/tutorhub-backend/api/middleware"
	"github.com/adjeibohyen/tutorhub-backend/api/responses"
	"github.com/adjeibohyen/tutorhub-backend/internal/payments"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
)

// SubscriptionInitialize opens a subscription checkout for the
// authenticated user against the configured plan.
func SubscriptionInitialize(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		email := middleware.EmailFromContext(r.Context())
		result, err := svc.InitializeSubscription(r.Context(), viewer.UserID, email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// SubscriptionPlanStatus reports the configured plan as the processor
// sees it. Admin-only diagnostic.
func SubscriptionPlanStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		result, err := svc.PlanStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
