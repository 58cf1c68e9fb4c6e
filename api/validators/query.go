package validators

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/adjeibohyen/tutorhub-backend/pkg/errors"
)

// ParseQueryString returns a trimmed query value, or an error when the
// parameter is required but absent.
func ParseQueryString(r *http.Request, key string, required bool) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" && required {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter is required").WithDetails(map[string]any{"field": key})
	}
	return raw, nil
}

// ParsePathUUID parses a URL path segment as a UUID.
func ParsePathUUID(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a UUID").WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
