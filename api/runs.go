package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/server"
	"github.com/kbukum/orchestrator/validation"
)

// ArchiveRequest selects the window of runs to archive by start time.
type ArchiveRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required,gtfield=From"`
}

// RunCancelled acknowledges a cancel request.
type RunCancelled struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// QueryRuns handles GET /api/v1/runs.
func (h *Handler) QueryRuns(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	runs, err := h.deps.History.Query(c.Request.Context(), f)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	limit := f.Limit
	if limit == 0 {
		limit = history.DefaultQueryLimit
	}
	server.RespondOKWithMeta(c, runs, &server.Meta{Count: len(runs), Limit: limit})
}

func parseFilter(c *gin.Context) (history.Filter, error) {
	f := history.Filter{
		Pipeline: c.Query("pipeline"),
		Trigger:  c.Query("trigger"),
	}
	if s := c.Query("status"); s != "" {
		st, ok := history.ParseRunStatus(s)
		if !ok {
			return f, apperrors.InvalidInput("status", "must be one of Running, Succeeded, Failed, PartialSuccess")
		}
		f.Status = st
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &f.From},
		{"to", &f.To},
		{"scheduled_at", &f.ScheduledAt},
	} {
		s := c.Query(p.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, apperrors.InvalidInput(p.name, "must be an RFC 3339 timestamp")
		}
		*p.dst = &t
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return f, apperrors.InvalidInput("limit", "must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// GetRun handles GET /api/v1/runs/:id.
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.deps.History.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, run)
}

// CancelRun handles POST /api/v1/runs/:id/cancel.
func (h *Handler) CancelRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Runner.Cancel(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("Run cancel requested", logger.Fields(logger.FieldRunID, id))
	server.RespondAccepted(c, RunCancelled{RunID: id, Status: "cancelling"})
}

// ArchiveRuns handles POST /api/v1/runs/archive.
func (h *Handler) ArchiveRuns(c *gin.Context) {
	if h.deps.Archiver == nil {
		server.RespondWithError(c, apperrors.ServiceUnavailable("archive storage"))
		return
	}
	var req ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	res, err := h.deps.Archiver.Archive(c.Request.Context(), req.From, req.To)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.Info("Runs archived", logger.Fields("path", res.Path, "runs", res.Runs))
	server.RespondOK(c, res)
}
