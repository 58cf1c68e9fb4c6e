package controllers

import (
	"net/http"

	"github.com/adjeibohyen/tutorhub-backend/api/responses"
	"github.com/adjeibohyen/tutorhub-backend/pkg/config"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db"
	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TutorHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the dependencies a request actually needs. Nil
// pingers are skipped so partial wiring in tests stays usable.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TutorHub-Env", cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
