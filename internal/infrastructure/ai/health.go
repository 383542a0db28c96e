package ai

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.uber.org/zap"
)

// Overall health levels.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthCritical = "critical"
)

// Pinger is implemented by providers that can check reachability.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthStatus represents the health of the completion providers
type HealthStatus struct {
	Overall   string            `json:"overall"`
	Providers map[string]bool   `json:"providers"`
	Details   map[string]string `json:"details"`
	LastCheck time.Time         `json:"last_check"`
}

// HealthChecker checks every registered provider concurrently
type HealthChecker struct {
	providers []outbound.CompletionProvider
	timeout   time.Duration
	logger    *zap.Logger
}

// NewHealthChecker creates a new provider health checker
func NewHealthChecker(providers []outbound.CompletionProvider, timeout time.Duration, logger *zap.Logger) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{providers: providers, timeout: timeout, logger: logger.Named("ai-health")}
}

// CheckHealth pings each provider. Providers without a health check are
// reported healthy.
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Providers: make(map[string]bool, len(h.providers)),
		Details:   make(map[string]string, len(h.providers)),
		LastCheck: time.Now(),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range h.providers {
		wg.Add(1)
		go func(p outbound.CompletionProvider) {
			defer wg.Done()
			name := strings.ToUpper(p.Name())
			detail := "Healthy"
			ok := true
			if pinger, can := p.(Pinger); can {
				checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
				defer cancel()
				if err := pinger.HealthCheck(checkCtx); err != nil {
					ok = false
					detail = "Unhealthy: " + err.Error()
					h.logger.Warn("Provider health check failed", zap.String("provider", name), zap.Error(err))
				}
			}
			mu.Lock()
			status.Providers[name] = ok
			status.Details[name] = detail
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	healthy := len(h.Healthy(status))
	switch {
	case healthy == 0:
		status.Overall = HealthCritical
	case healthy < len(h.providers):
		status.Overall = HealthDegraded
	default:
		status.Overall = HealthHealthy
	}

	h.logger.Debug("AI health check completed",
		zap.String("overall_status", status.Overall),
		zap.Int("healthy_providers", healthy),
		zap.Int("total_providers", len(h.providers)))
	return status
}

// Healthy returns the healthy provider tags, sorted.
func (h *HealthChecker) Healthy(status *HealthStatus) []string {
	var out []string
	for name, ok := range status.Providers {
		if ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
