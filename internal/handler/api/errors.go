package api

import (
	"errors"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
)

// toAppError maps domain failures onto HTTP errors. Unknown errors are 500s.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrSchemaMismatch):
		return xhttp.NewAppError("ERR_SCHEMA_MISMATCH", "", "feature schema mismatch", 500).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "historical data unavailable").WithError(err)
	case errors.Is(err, models.ErrInvalidArgument):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInsufficientFunds):
		return xhttp.NewAppError("ERR_INSUFFICIENT_FUNDS", "", err.Error(), 400).WithError(err)
	case errors.Is(err, models.ErrInsufficientPosition):
		return xhttp.NewAppError("ERR_INSUFFICIENT_POSITION", "", err.Error(), 400).WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.ServiceUnavailableError("ERR_DATA_UNAVAILABLE", "market data unavailable").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
