package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/adjeibohyen/tutorhub-backend/api/middleware"
	"github.com/adjeibohyen/tutorhub-backend/api/responses"
	"github.com/adjeibohyen/tutorhub-backend/api/validators"
	"github.com/adjeibohyen/tutorhub-backend/internal/videos"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
)

// VideoList returns the catalog shaped for the current viewer. Anonymous
// browsers see everything except the playback URLs.
func VideoList(svc videos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		var category *string
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			category = &raw
		}

		viewer := middleware.ViewerFromContext(r.Context())
		result, err := svc.List(r.Context(), viewer, category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func VideoGet(svc videos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "videoId"), "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		viewer := middleware.ViewerFromContext(r.Context())
		result, err := svc.Get(r.Context(), viewer, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func VideoCreate(svc videos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		var body videos.CreateVideoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func VideoUpdate(svc videos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "videoId"), "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body videos.UpdateVideoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Update(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func VideoDelete(svc videos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "videoId"), "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
