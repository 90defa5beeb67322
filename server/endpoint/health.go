package endpoint

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/orchestrator/component"
	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/observability"
	"github.com/kbukum/orchestrator/version"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// Health reports the worst component state as the service status, with
// every component's message and details. ?component=<name> narrows the
// report to one component. An unhealthy report answers 503.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}

		only := c.Query("component")
		report := observability.NewServiceHealth(serviceName, version.Get().Version)
		for _, h := range components {
			if only == "" || h.Name == only {
				report.AddComponent(h)
			}
		}
		if only != "" && len(report.Components) == 0 {
			c.JSON(http.StatusNotFound, apperrors.NotFound("component", only).ToResponse())
			return
		}

		code := http.StatusOK
		if !report.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}
