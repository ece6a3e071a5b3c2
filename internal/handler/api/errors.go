package api

import (
	"context"
	"errors"
	"net/http"

	"NewsVol/internal/domain/models"
	xhttp "NewsVol/pkg/http"
)

// toAppError maps domain and collaborator failures onto API errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.NewAppError("ERR_INVALID_INPUT", invalidField(err), err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", err.Error()).WithError(err)
	case errors.Is(err, models.ErrModelFit):
		return xhttp.UnprocessableError("ERR_MODEL_FIT", err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.GatewayTimeoutError("analysis timed out").WithError(err)
	case errors.Is(err, models.ErrUpstream):
		return xhttp.BadGatewayError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

func invalidField(err error) string {
	var ie *models.InvalidInputError
	if errors.As(err, &ie) {
		return ie.Field
	}
	return ""
}
