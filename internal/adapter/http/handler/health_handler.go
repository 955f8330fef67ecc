package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"solana-custody-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// healthTimeout bounds each dependency ping.
const healthTimeout = 3 * time.Second

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Liveness handles GET /health/live. It never touches dependencies.
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// HealthCheck handles GET /health. All dependencies are pinged concurrently;
// any failure reports 503 "degraded".
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			deps = make(map[string]dependencyStatus, len(checkers))
		)
		for _, checker := range checkers {
			wg.Add(1)
			go func(checker ports.HealthChecker) {
				defer wg.Done()
				st := ping(c.Request.Context(), checker)
				mu.Lock()
				deps[checker.Name()] = st
				mu.Unlock()
			}(checker)
		}
		wg.Wait()

		status, code := "healthy", http.StatusOK
		for _, st := range deps {
			if st.Error != "" {
				status, code = "degraded", http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

func ping(parent context.Context, checker ports.HealthChecker) dependencyStatus {
	ctx, cancel := context.WithTimeout(parent, healthTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	st := dependencyStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		st.Status = "unhealthy"
		st.Error = err.Error()
	}
	return st
}
