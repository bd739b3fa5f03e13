package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
)

// ParseQueryBool reads a boolean query parameter, defaulting when absent.
func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a boolean").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// ParseUUIDParam validates a path parameter as a uuid.
func ParseUUIDParam(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if err := validate.Var(trimmed, "required,uuid"); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return trimmed, nil
}
