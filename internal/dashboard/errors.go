package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/dealer-insights/internal/common"
	"github.com/noah-isme/dealer-insights/internal/export"
	"github.com/noah-isme/dealer-insights/internal/performance"
	"github.com/noah-isme/dealer-insights/internal/period"
	"github.com/noah-isme/dealer-insights/internal/resilience"
)

// ErrNoReport is returned when an export is requested before a report was loaded.
var ErrNoReport = errors.New("dashboard: no report loaded")

// statusClientClosed is logged when the caller went away mid-request.
const statusClientClosed = 499

// writeError maps domain errors onto the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	var (
		fetchErr *performance.FetchError
		valErrs  validator.ValidationErrors
		appErr   *common.AppError
	)
	switch {
	case errors.As(err, &valErrs):
		fields := make(map[string]string, len(valErrs))
		for _, fe := range valErrs {
			fields[fe.Field()] = fe.Tag()
		}
		common.WriteAppError(w, common.Validation(err, fields))
	case errors.Is(err, period.ErrInvalidRange):
		common.JSONError(w, http.StatusBadRequest, "INVALID_RANGE", err.Error(), nil)
	case errors.Is(err, performance.ErrMissingDealer):
		common.JSONError(w, http.StatusBadRequest, "DEALER_REQUIRED", "dealer id required", nil)
	case errors.Is(err, performance.ErrSuperseded):
		common.JSONError(w, http.StatusConflict, "SUPERSEDED", "a newer selection replaced this request", nil)
	case errors.Is(err, performance.ErrNoSelection):
		common.JSONError(w, http.StatusConflict, "NO_SELECTION", "no period selected yet", nil)
	case errors.Is(err, ErrNoReport):
		common.JSONError(w, http.StatusConflict, "NO_REPORT", "no report loaded to export", nil)
	case errors.Is(err, export.ErrExport):
		logger.Error().Err(err).Msg("export_failed")
		common.JSONError(w, http.StatusInternalServerError, "EXPORT_FAILED", "export failed", nil)
	case errors.Is(err, resilience.ErrOpenCircuit):
		common.JSONError(w, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "dealer backend temporarily unavailable", nil)
	case errors.As(err, &fetchErr):
		if fetchErr.Unauthorized() {
			code := "UNAUTHORIZED"
			if fetchErr.Status == http.StatusForbidden {
				code = "FORBIDDEN"
			}
			common.JSONError(w, fetchErr.Status, code, fetchErr.Message, nil)
			return
		}
		logger.Warn().Int("backend_status", fetchErr.Status).Str("message", fetchErr.Message).Msg("backend_fetch_failed")
		common.JSONError(w, http.StatusBadGateway, "BACKEND_ERROR", fetchErr.Message, nil)
	case errors.Is(err, context.DeadlineExceeded):
		common.JSONError(w, http.StatusGatewayTimeout, "TIMEOUT", "dealer backend timed out", nil)
	case errors.Is(err, context.Canceled):
		w.WriteHeader(statusClientClosed)
	case errors.As(err, &appErr):
		common.WriteAppError(w, appErr)
	default:
		logger.Error().Err(err).Msg("unhandled_error")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
