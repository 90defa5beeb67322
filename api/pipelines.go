package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/executor"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/server"
)

// PipelineSummary is a pipeline listing entry.
type PipelineSummary struct {
	Name        string         `json:"name"`
	Folder      string         `json:"folder,omitempty"`
	Annotations []string       `json:"annotations,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Activities  []string       `json:"activities"`
}

// CreateRunRequest is the body of an on-demand run. It may be omitted.
type CreateRunRequest struct {
	Parameters map[string]string `json:"parameters"`
}

// RunCreated acknowledges a started run.
type RunCreated struct {
	RunID    string `json:"run_id"`
	Pipeline string `json:"pipeline"`
}

// ListPipelines handles GET /api/v1/pipelines.
func (h *Handler) ListPipelines(c *gin.Context) {
	list := h.deps.Pipelines.List()
	out := make([]PipelineSummary, 0, len(list))
	for _, p := range list {
		names := make([]string, 0, len(p.Activities))
		for _, a := range p.Activities {
			names = append(names, a.Name)
		}
		out = append(out, PipelineSummary{
			Name:        p.Name,
			Folder:      p.Folder,
			Annotations: p.Annotations,
			Parameters:  p.Parameters,
			Activities:  names,
		})
	}
	server.RespondOKWithMeta(c, out, &server.Meta{Count: len(out)})
}

// GetPipeline handles GET /api/v1/pipelines/:name.
func (h *Handler) GetPipeline(c *gin.Context) {
	p, err := h.deps.Pipelines.Lookup(c.Param("name"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, p)
}

// CreateRun handles POST /api/v1/pipelines/:name/runs.
func (h *Handler) CreateRun(c *gin.Context) {
	p, err := h.deps.Pipelines.Lookup(c.Param("name"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		server.RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}

	handle, err := h.deps.Runner.Start(c.Request.Context(), p, executor.Request{Parameters: req.Parameters})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(c.Request.Context()).Info("On-demand run created",
		logger.Fields(logger.FieldRunID, handle.ID, logger.FieldPipeline, p.Name))
	server.RespondAccepted(c, RunCreated{RunID: handle.ID, Pipeline: p.Name})
}
