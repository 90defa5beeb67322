package observability

import "github.com/kbukum/orchestrator/component"

// ServiceHealth is the body of GET /health.
type ServiceHealth struct {
	Service    string                 `json:"service"`
	Version    string                 `json:"version,omitempty"`
	Status     component.HealthStatus `json:"status"`
	Components []component.Health     `json:"components,omitempty"`
}

// NewServiceHealth starts out healthy.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Version: version, Status: component.StatusHealthy}
}

// AddComponent records h; the overall status is the worst seen.
func (sh *ServiceHealth) AddComponent(h component.Health) {
	sh.Components = append(sh.Components, h)
	switch h.Status {
	case component.StatusUnhealthy:
		sh.Status = component.StatusUnhealthy
	case component.StatusDegraded:
		if sh.Status != component.StatusUnhealthy {
			sh.Status = component.StatusDegraded
		}
	}
}

// Healthy reports whether no component is unhealthy.
func (sh *ServiceHealth) Healthy() bool {
	return sh.Status != component.StatusUnhealthy
}
