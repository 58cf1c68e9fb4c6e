package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/adjeibohyen/tutorhub-backend/api/responses"
	pkgAuth "github.com/adjeibohyen/tutorhub-backend/pkg/auth"
	"github.com/adjeibohyen/tutorhub-backend/pkg/config"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(seedClaims(r.Context(), claims, logg)))
		})
	}
}

// OptionalAuth seeds the context when a valid bearer token is present and
// lets the request through anonymously otherwise. Malformed tokens are
// still rejected so a broken client hears about it.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(seedClaims(r.Context(), claims, logg)))
		})
	}
}

// RequireAdmin rejects requests whose context lacks the admin flag.
// It must run after Auth.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAdminFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

func seedClaims(ctx context.Context, claims *pkgAuth.AccessTokenClaims, logg *logger.Logger) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, claims.UserID.String())
	ctx = context.WithValue(ctx, ctxEmail, claims.Email)
	ctx = context.WithValue(ctx, ctxIsAdmin, claims.IsAdmin)

	if logg != nil {
		ctx = logg.WithUserID(ctx, claims.UserID.String())
	}
	return ctx
}
