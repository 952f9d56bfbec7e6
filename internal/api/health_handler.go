package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// probe is one dependency check. A nil ping means the dependency is not
// configured.
type probe struct {
	name    string
	timeout time.Duration
	slow    time.Duration
	ping    func(context.Context) error
}

// HealthChecker reports the state of the import store and the Redis instance
// behind the queue and locks.
type HealthChecker struct {
	probes    []probe
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker. Either dependency can be
// nil; its check then reports "not configured".
func NewHealthChecker(db Pinger, redisClient *redis.Client) *HealthChecker {
	hc := &HealthChecker{startTime: time.Now()}
	dbProbe := probe{name: "database", timeout: 3 * time.Second, slow: time.Second}
	if db != nil {
		dbProbe.ping = db.PingContext
	}
	redisProbe := probe{name: "redis", timeout: 2 * time.Second, slow: 500 * time.Millisecond}
	if redisClient != nil {
		redisProbe.ping = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	hc.probes = []probe{dbProbe, redisProbe}
	return hc
}

const healthVersion = "1.0.0"

// HandleHealth always answers 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness answers 200 while the process runs.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness answers 503 when the database is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	checks := make(map[string]ComponentCheck, len(hc.probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range hc.probes {
		wg.Add(1)
		go func(p probe) {
			defer wg.Done()
			c := ComponentCheck{Status: "down", Message: notConfigured}
			if p.ping != nil {
				c = timedCheck(ctx, p.timeout, p.slow, p.ping)
			}
			mu.Lock()
			checks[p.name] = c
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return checks
}

const notConfigured = "not configured"

// timedCheck pings with a timeout and reports degraded above slow.
func timedCheck(ctx context.Context, timeout, slow time.Duration, ping func(context.Context) error) ComponentCheck {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// determineOverallStatus folds the checks into "unhealthy" when the
// configured database is down, "degraded" when anything else failed or was
// slow, and "healthy" otherwise. Unconfigured dependencies are ignored.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	overall := "healthy"
	for name, c := range checks {
		failed := c.Status == "down" && c.Message != notConfigured
		if failed && name == "database" {
			return "unhealthy"
		}
		if failed || c.Status == "degraded" {
			overall = "degraded"
		}
	}
	return overall
}

// formatUptime renders d as "3d 4h 12m 5s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs % 86400 / 3600, "h"},
		{secs % 3600 / 60, "m"},
		{secs % 60, "s"},
	}
	var out []string
	for i, p := range parts {
		if len(out) == 0 && p.n == 0 && i < len(parts)-1 {
			continue
		}
		out = append(out, fmt.Sprintf("%d%s", p.n, p.unit))
	}
	return strings.Join(out, " ")
}
