package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const dependencyCheckTimeout = 2 * time.Second

// HealthChecker pings the backing stores the engine cannot serve without.
type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{infra: infra}
}

type dependencyCheck struct {
	name string
	ping func(context.Context) error
}

// check pings every dependency concurrently and records a verdict per name.
func (h *HealthChecker) check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, dependencyCheckTimeout)
	defer cancel()

	checks := []dependencyCheck{
		{"postgres", h.infra.Postgres().Ping},
		{"redis", h.infra.Redis().Ping},
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(checks))
	)
	healthy := true

	for _, chk := range checks {
		wg.Add(1)
		go func(chk dependencyCheck) {
			defer wg.Done()
			verdict := "pass"
			if err := chk.ping(ctx); err != nil {
				verdict = "fail: " + err.Error()
			}
			mu.Lock()
			results[chk.name] = verdict
			if verdict != "pass" {
				healthy = false
			}
			mu.Unlock()
		}(chk)
	}
	wg.Wait()

	return results, healthy
}

// Handler reports the overall status plus a per-dependency breakdown so a
// failing store is identifiable straight from the response body.
func (h *HealthChecker) Handler(c *gin.Context) {
	checks, healthy := h.check(c.Request.Context())

	status, code := "pass", http.StatusOK
	if !healthy {
		status, code = "fail", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
	})
}
