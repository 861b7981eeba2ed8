package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type enableWarmupReq struct {
	Schedule string `json:"schedule"` // conservative | moderate | aggressive; empty = default
}

func senderParam(c echo.Context) string {
	return strings.ToLower(strings.TrimSpace(c.Param("email")))
}

func enableWarmupHandler(w Warmup, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req enableWarmupReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "bad request")
		}
		email := senderParam(c)
		if err := w.Enable(c.Request().Context(), email, req.Schedule); err != nil {
			return fail(c, log, "enable warmup", err)
		}
		st, err := w.Status(c.Request().Context(), email)
		if err != nil {
			return fail(c, log, "warmup status", err)
		}
		return c.JSON(http.StatusOK, st)
	}
}

func disableWarmupHandler(w Warmup, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := w.Disable(c.Request().Context(), senderParam(c)); err != nil {
			return fail(c, log, "disable warmup", err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func warmupStatusHandler(w Warmup, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := w.Status(c.Request().Context(), senderParam(c))
		if err != nil {
			return fail(c, log, "warmup status", err)
		}
		return c.JSON(http.StatusOK, st)
	}
}
