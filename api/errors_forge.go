package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	intake "github.com/xraph/intake"
	"github.com/xraph/intake/provider"
)

// mapError converts intake sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	var vErr *provider.ValidationError
	switch {
	case errors.Is(err, intake.ErrProviderNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, intake.ErrEventNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, intake.ErrExecutionNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, intake.ErrDLQNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, intake.ErrProviderExists):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, intake.ErrDLQAlreadyReplayed):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &vErr):
		return forge.BadRequest(err.Error())
	case errors.Is(err, intake.ErrNoStore):
		return forge.InternalError(err)
	case errors.Is(err, intake.ErrStoreClosed):
		return forge.InternalError(err)
	case errors.Is(err, intake.ErrMigrationFailed):
		return forge.InternalError(err)
	default:
		return forge.InternalError(err)
	}
}
