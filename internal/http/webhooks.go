package http

import (
	"net/http"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// voiceWebhookHandler applies a call completion pushed by the voice
// provider. Redeliveries answer 200 so the provider stops retrying.
func voiceWebhookHandler(calls Calls, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var ev model.CallEvent
		if err := c.Bind(&ev); err != nil {
			metrics.CallbacksTotal.WithLabelValues("webhook", "rejected").Inc()
			return badRequest(c, "bad request")
		}
		applied, err := calls.Complete(c.Request().Context(), ev)
		if err != nil {
			outcome := "error"
			if apperr.IsValidation(err) || apperr.IsNotFound(err) {
				outcome = "rejected"
			}
			metrics.CallbacksTotal.WithLabelValues("webhook", outcome).Inc()
			return fail(c, log, "voice webhook", err)
		}
		if !applied {
			metrics.CallbacksTotal.WithLabelValues("webhook", "duplicate").Inc()
			return c.JSON(http.StatusOK, map[string]any{"call_id": ev.CallID, "applied": false})
		}
		metrics.CallbacksTotal.WithLabelValues("webhook", "applied").Inc()
		return c.JSON(http.StatusOK, map[string]any{
			"call_id": ev.CallID,
			"applied": true,
			"status":  ev.ResolvedStatus(),
		})
	}
}
