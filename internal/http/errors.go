package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// fail maps domain errors onto status codes; anything unrecognised is logged
// and reported as a 500 without detail.
func fail(c echo.Context, log *zap.Logger, op string, err error) error {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid " + ve.Field, "reason": ve.Reason})
	case apperr.IsNotFound(err):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return c.JSON(http.StatusConflict, map[string]string{"error": "already_enrolled"})
	case apperr.IsRateLimit(err):
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	}
	log.Error(op+" failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
