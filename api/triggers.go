package api

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/scheduler"
	"github.com/kbukum/orchestrator/server"
)

// ListTriggers handles GET /api/v1/triggers.
func (h *Handler) ListTriggers(c *gin.Context) {
	list := h.deps.Scheduler.Triggers()
	server.RespondOKWithMeta(c, list, &server.Meta{Count: len(list)})
}

// StartTrigger handles POST /api/v1/triggers/:name/start.
func (h *Handler) StartTrigger(c *gin.Context) {
	h.setActive(c, true)
}

// StopTrigger handles POST /api/v1/triggers/:name/stop.
func (h *Handler) StopTrigger(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	name := c.Param("name")
	var err error
	if active {
		err = h.deps.Scheduler.Activate(c.Request.Context(), name)
	} else {
		err = h.deps.Scheduler.Deactivate(c.Request.Context(), name)
	}
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	for _, t := range h.deps.Scheduler.Triggers() {
		if t.Name == name {
			server.RespondOK(c, t)
			return
		}
	}
	server.RespondOK(c, scheduler.TriggerInfo{Name: name, Active: active})
}

// LastSuccess handles GET /api/v1/triggers/:name/last-success. The data is
// null when the trigger has never produced a successful run.
func (h *Handler) LastSuccess(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.deps.Triggers.Get(name); !ok {
		server.RespondWithError(c, apperrors.NotFound("trigger", name))
		return
	}
	run, err := h.deps.History.LastSuccessfulRun(c.Request.Context(), name)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, run)
}
