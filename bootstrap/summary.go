package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/orchestrator/component"
)

// Summary renders the startup report.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
}

// NewSummary creates a new bootstrap summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Render writes the summary: infrastructure from Describable components,
// routes from a RouteProvider, and live health for every component.
func (s *Summary) Render(w io.Writer, registry *component.Registry) {
	version := s.version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(w, "\n🚀 %s %s started in %.2fs\n", s.serviceName, version, s.startupDuration.Seconds())
	if registry == nil {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	ctx := context.Background()
	comps := registry.All()
	health := make(map[string]component.Health, len(comps))
	for _, h := range registry.HealthAll(ctx) {
		health[h.Name] = h
	}

	var infra []component.Description
	var healthy []bool
	var routes []component.Route
	for _, c := range comps {
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			if desc.Name == "" {
				desc.Name = c.Name()
			}
			infra = append(infra, desc)
			healthy = append(healthy, health[c.Name()].Status != component.StatusUnhealthy)
		}
		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}

	if len(infra) > 0 {
		fmt.Fprintf(w, "\n📊 Infrastructure\n")
		for i, d := range infra {
			details := d.Details
			if d.Port > 0 && !strings.Contains(details, fmt.Sprintf(":%d", d.Port)) {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s %s %s [%s]: %s\n", treePrefix(i, len(infra)), statusIcon(healthy[i]), d.Name, d.Type, details)
		}
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "\n🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-6s %s → %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	results := registry.HealthAll(ctx)
	if len(results) == 0 {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}
	fmt.Fprintf(w, "\n🏥 Health Check\n")
	ok := 0
	for i, h := range results {
		msg := ""
		if h.Message != "" {
			msg = " (" + h.Message + ")"
		}
		if h.Status == component.StatusHealthy {
			ok++
		}
		fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(results)), healthStatusIcon(h.Status), h.Name, h.Status, msg)
	}
	if ok == len(results) {
		fmt.Fprintf(w, "\n✅ All components healthy (%d/%d)\n\n", ok, len(results))
	} else {
		fmt.Fprintf(w, "\n⚠️  Some components have issues (%d/%d healthy)\n\n", ok, len(results))
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func statusIcon(healthy bool) string {
	if healthy {
		return "✅"
	}
	return "❌"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
