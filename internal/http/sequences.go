package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/outreach-engine/internal/http/middleware"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/service/sequence"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type createSequenceReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Steps       []model.StepDef `json:"steps"`
}

func createSequenceHandler(seq Sequences, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createSequenceReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "bad request")
		}
		out, err := seq.CreateSequence(c.Request().Context(),
			strings.TrimSpace(req.Name), req.Description, req.Category, req.Steps)
		if err != nil {
			return fail(c, log, "create sequence", err)
		}
		return c.JSON(http.StatusCreated, map[string]any{
			"id":    out.ID,
			"name":  out.Name,
			"steps": len(req.Steps),
		})
	}
}

func sequenceStatusHandler(seq Sequences, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		counts, err := seq.Status(c.Request().Context(), c.Param("id"))
		if err != nil {
			return fail(c, log, "sequence status", err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"sequence_id": c.Param("id"),
			"counts":      counts,
		})
	}
}

type enrollReq struct {
	PersonKey   string `json:"person_key"`
	CampaignID  string `json:"campaign_id"`
	SequenceID  string `json:"sequence_id"`
	SenderEmail string `json:"sender_email"`
}

func enrollHandler(seq Sequences, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req enrollReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "bad request")
		}
		id, err := seq.Enroll(c.Request().Context(), sequence.EnrollRequest{
			PersonKey:   strings.TrimSpace(req.PersonKey),
			CampaignID:  strings.TrimSpace(req.CampaignID),
			SequenceID:  strings.TrimSpace(req.SequenceID),
			SenderEmail: strings.ToLower(strings.TrimSpace(req.SenderEmail)),
		})
		if err != nil {
			return fail(c, log, "enroll", err)
		}
		return c.JSON(http.StatusCreated, map[string]any{"id": id, "status": model.EnrollmentPending})
	}
}

func replayHandler(seq Sequences, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return badRequest(c, "invalid id")
		}
		if err := seq.Replay(c.Request().Context(), id); err != nil {
			return fail(c, log, "replay", err)
		}
		client, _ := middleware.ClientIDFromCtx(c)
		log.Info("enrollment replayed", zap.Int64("enrollment_id", id), zap.String("client", client))
		return c.JSON(http.StatusAccepted, map[string]any{"id": id, "status": model.EnrollmentPending})
	}
}
