// Package api exposes pipelines, runs and triggers over the orchestrator's
// HTTP server.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/orchestrator/executor"
	"github.com/kbukum/orchestrator/history"
	"github.com/kbukum/orchestrator/logger"
	"github.com/kbukum/orchestrator/pipeline"
	"github.com/kbukum/orchestrator/scheduler"
	"github.com/kbukum/orchestrator/trigger"
)

// Runner starts and cancels runs. *executor.Executor implements it.
type Runner interface {
	Start(ctx context.Context, p *pipeline.Pipeline, req executor.Request) (*executor.Handle, error)
	Cancel(ctx context.Context, runID string) error
}

// TriggerControl lists and toggles triggers. *scheduler.Scheduler implements it.
type TriggerControl interface {
	Triggers() []scheduler.TriggerInfo
	Activate(ctx context.Context, name string) error
	Deactivate(ctx context.Context, name string) error
}

// Deps are the services behind the API. Archiver may be nil when no archive
// storage is configured.
type Deps struct {
	Pipelines *pipeline.Catalog
	Triggers  *trigger.Registry
	Scheduler TriggerControl
	Runner    Runner
	History   *history.History
	Archiver  *history.Archiver
}

// Handler serves the /api/v1 routes.
type Handler struct {
	deps Deps
	log  *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps, log *logger.Logger) *Handler {
	return &Handler{deps: deps, log: log.WithComponent("api")}
}

// Register mounts the routes under /api/v1 on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")

	v1.GET("/pipelines", h.ListPipelines)
	v1.GET("/pipelines/:name", h.GetPipeline)
	v1.POST("/pipelines/:name/runs", h.CreateRun)

	v1.GET("/runs", h.QueryRuns)
	v1.POST("/runs/archive", h.ArchiveRuns)
	v1.GET("/runs/:id", h.GetRun)
	v1.POST("/runs/:id/cancel", h.CancelRun)

	v1.GET("/triggers", h.ListTriggers)
	v1.POST("/triggers/:name/start", h.StartTrigger)
	v1.POST("/triggers/:name/stop", h.StopTrigger)
	v1.GET("/triggers/:name/last-success", h.LastSuccess)
}
